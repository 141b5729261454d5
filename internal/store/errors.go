package store

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an adapter failure so callers can decide how to map it
// without inspecting backend-specific error types.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindTransient
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission denied"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the storage adapters. It
// wraps the backend error, so errors.Is/As still reach it.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an adapter error classified as
// not-found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// KindOf extracts the Kind from an adapter error, or KindUnknown if err
// was produced elsewhere.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// classifyNetwork maps context and socket-level failures to
// KindTransient; anything else falls through to fallback.
func classifyNetwork(err error, fallback Kind) Kind {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return KindTransient
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return fallback
	}
}
