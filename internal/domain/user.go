package domain

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. Age, Height (cm) and Weight (kg) are optional
// until the profile is completed.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Age          *int
	Height       *float64
	Weight       *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BMI returns the body mass index and its class when height and weight are known.
func (u User) BMI() (float64, BMIClass, bool) {
	if u.Height == nil || u.Weight == nil {
		return 0, "", false
	}
	bmi := ComputeBMI(*u.Weight, *u.Height)
	if bmi == 0 {
		return 0, "", false
	}
	return bmi, ClassifyBMI(bmi), true
}

// ProfileUpdate lists the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Age       *int
	Height    *float64
	Weight    *float64
}

// UserRepository persists accounts. CreateUser reports duplicate email or
// username as a Conflict error; lookups that miss return nil, nil.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate, now time.Time) (*User, error)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Profile bounds.
const (
	MinAge            = 16
	MaxAge            = 120
	MinHeightCm       = 100
	MaxHeightCm       = 250
	MinWeightKg       = 30
	MaxWeightKg       = 300
	MinPasswordLength = 8
	MinNameLength     = 2
)

// AccountService implements registration, login and profile management.
type AccountService struct {
	users     UserRepository
	cost      int
	dummyHash []byte
	now       func() time.Time
}

// AccountOption customises AccountService.
type AccountOption func(*AccountService)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AccountOption {
	return func(s *AccountService) {
		s.cost = cost
	}
}

// NewAccountService constructs an AccountService.
func NewAccountService(users UserRepository, opts ...AccountOption) *AccountService {
	s := &AccountService{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against on unknown emails so both login failures cost one bcrypt round.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fittracker-dummy-password"), s.cost)
	return s
}

func (in RegisterInput) validate() error {
	if len(strings.TrimSpace(in.Username)) < MinNameLength {
		return Validation("username must be at least %d characters", MinNameLength)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		return Validation("email is invalid")
	}
	if len(in.Password) < MinPasswordLength {
		return Validation("password must be at least %d characters", MinPasswordLength)
	}
	if len(strings.TrimSpace(in.FirstName)) < MinNameLength {
		return Validation("first_name must be at least %d characters", MinNameLength)
	}
	if len(strings.TrimSpace(in.LastName)) < MinNameLength {
		return Validation("last_name must be at least %d characters", MinNameLength)
	}
	return nil
}

// Register creates an account with a bcrypt password hash.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(in.Username),
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login checks the credentials. Unknown email and wrong password produce the
// same error.
func (s *AccountService) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, &Error{Kind: ErrInvalidCredentials, Message: "invalid email or password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, &Error{Kind: ErrInvalidCredentials, Message: "invalid email or password"}
	}
	return user, nil
}

// GetProfile loads the caller's account.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("user")
	}
	return user, nil
}

// UpdateProfile changes any subset of the profile fields.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	if err := update.validate(); err != nil {
		return nil, err
	}
	if update.FirstName != nil {
		v := strings.TrimSpace(*update.FirstName)
		update.FirstName = &v
	}
	if update.LastName != nil {
		v := strings.TrimSpace(*update.LastName)
		update.LastName = &v
	}

	user, err := s.users.UpdateProfile(ctx, userID, update, s.now())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NotFound("user")
	}
	return user, nil
}

// CompleteProfile is the second registration step: age, height and weight
// are all required.
func (s *AccountService) CompleteProfile(ctx context.Context, userID string, age int, height, weight float64) (*User, error) {
	return s.UpdateProfile(ctx, userID, ProfileUpdate{Age: &age, Height: &height, Weight: &weight})
}

func (u ProfileUpdate) validate() error {
	if u.FirstName != nil && len(strings.TrimSpace(*u.FirstName)) < MinNameLength {
		return Validation("first_name must be at least %d characters", MinNameLength)
	}
	if u.LastName != nil && len(strings.TrimSpace(*u.LastName)) < MinNameLength {
		return Validation("last_name must be at least %d characters", MinNameLength)
	}
	if u.Age != nil && (*u.Age < MinAge || *u.Age > MaxAge) {
		return Validation("age must be between %d and %d", MinAge, MaxAge)
	}
	if u.Height != nil && (*u.Height < MinHeightCm || *u.Height > MaxHeightCm) {
		return Validation("height must be between %d and %d cm", MinHeightCm, MaxHeightCm)
	}
	if u.Weight != nil && (*u.Weight < MinWeightKg || *u.Weight > MaxWeightKg) {
		return Validation("weight must be between %d and %d kg", MinWeightKg, MaxWeightKg)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
