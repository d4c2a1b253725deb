package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures.
type Kind int

const (
	// KindUpstream covers transport failures, timeouts, non-2xx answers other
	// than 404, and payloads that cannot be decoded.
	KindUpstream Kind = iota
	// KindNotFound means the catalog answered 404 for the requested resource.
	KindNotFound
)

func (k Kind) String() string {
	if k == KindNotFound {
		return "not_found"
	}
	return "upstream"
}

var (
	// ErrNotFound matches any *Error with KindNotFound.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnavailable matches any *Error with KindUpstream.
	ErrUnavailable = errors.New("catalog: unavailable")
)

// Error is returned by every Gateway call that fails.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("catalog %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the exported sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnavailable:
		return e.Kind == KindUpstream
	}
	return false
}
