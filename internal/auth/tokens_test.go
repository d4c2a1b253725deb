package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: make(map[string]RefreshToken)}
}

func (s *fakeStore) CreateRefreshToken(_ context.Context, token RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *fakeStore) RotateRefreshToken(_ context.Context, presented string, next RefreshToken, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	current, ok := s.tokens[presented]
	if !ok || current.Used || !current.ExpiresAt.After(now) {
		return "", ErrUnauthenticated
	}
	current.Used = true
	s.tokens[presented] = current
	next.UserID = current.UserID
	s.tokens[next.Token] = next
	return current.UserID, nil
}

func (s *fakeStore) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if current, ok := s.tokens[token]; ok {
		current.Used = true
		s.tokens[token] = current
	}
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(store RefreshTokenStore) (*Service, *clock) {
	clk := &clock{now: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Config{
		Secret:     "test-secret",
		Issuer:     "fittracker",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, store, WithClock(clk.Now))
	return svc, clk
}

func TestIssuePairPersistsRefreshToken(t *testing.T) {
	store := newFakeStore()
	svc, clk := newTestService(store)

	pair, err := svc.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, pair.RefreshToken, 80)
	_, err = hex.DecodeString(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, clk.Now().Add(15*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, clk.Now().Add(7*24*time.Hour), pair.RefreshExpiresAt)

	stored, ok := store.tokens[pair.RefreshToken]
	require.True(t, ok)
	require.Equal(t, "user-1", stored.UserID)
	require.False(t, stored.Used)
}

func TestIssuePairPropagatesStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")
	svc, _ := newTestService(store)

	_, err := svc.IssuePair(context.Background(), "user-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestAccessTokenLifetime(t *testing.T) {
	svc, clk := newTestService(newFakeStore())
	pair, err := svc.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)

	clk.Advance(14*time.Minute + 59*time.Second)
	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)

	clk.Advance(2 * time.Second)
	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyAccessRejectsForgeries(t *testing.T) {
	svc, clk := newTestService(newFakeStore())
	pair, err := svc.IssuePair(context.Background(), "user-1")
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "fittracker",
		ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Minute)),
	}
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"empty":         "",
		"garbage":       "not-a-jwt",
		"tampered":      pair.AccessToken[:len(pair.AccessToken)-2] + "xx",
		"wrong secret":  sign(jwt.SigningMethodHS256, []byte("other-secret"), valid),
		"wrong issuer":  sign(jwt.SigningMethodHS256, []byte("test-secret"), wrongIssuer),
		"no expiry":     sign(jwt.SigningMethodHS256, []byte("test-secret"), noExpiry),
		"alg none":      sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid),
		"hs512 variant": sign(jwt.SigningMethodHS512, []byte("test-secret"), valid),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyAccess(token)
			require.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestRotateIsSingleUse(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	second, err := svc.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", second.UserID)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	userID, err := svc.VerifyAccess(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)

	_, err = svc.Rotate(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Rotate(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRotateRejectsExpiredAndUnknown(t *testing.T) {
	svc, clk := newTestService(newFakeStore())
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, strings.Repeat("ab", 40))
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Rotate(ctx, "")
	require.ErrorIs(t, err, ErrUnauthenticated)

	clk.Advance(7*24*time.Hour + time.Second)
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRevokeBurnsRefreshToken(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, svc.Revoke(ctx, "unknown"))
	require.NoError(t, svc.Revoke(ctx, " "))

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)

	store.err = errors.New("db down")
	require.Error(t, svc.Revoke(ctx, pair.RefreshToken))
}

func TestConcurrentRotationHasOneWinner(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	const attempts = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrUnauthenticated) {
				failures++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, failures)
}

func TestMiddlewareAcceptsCookieAndBearer(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	pair, err := svc.IssuePair(context.Background(), "user-42")
	require.NoError(t, err)

	var seen string
	protected := NewMiddleware(svc).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/workouts", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: pair.AccessToken})
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "user-42", seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/api/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "user-42", seen)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	called := false
	protected := NewMiddleware(svc).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/goals", nil))

	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"type":"unauthenticated","message":"authentication required"}`, rr.Body.String())
}

func TestTokenCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	SetTokenCookies(rr, TokenPair{
		AccessToken:      "a",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshToken:     "r",
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}, true)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteStrictMode, c.SameSite)
		require.Equal(t, "/", c.Path)
		require.Positive(t, c.MaxAge)
	}

	rr = httptest.NewRecorder()
	ClearTokenCookies(rr, false)
	cleared := rr.Result().Cookies()
	require.Len(t, cleared, 2)
	for _, c := range cleared {
		require.Empty(t, c.Value)
		require.Equal(t, -1, c.MaxAge)
	}
}
