// Package extract defines the failure kinds an extraction attempt can
// report. The orchestrator dispatches on the kind: timeouts are retried,
// crashes force a session rebuild, parse failures skip a single item.
package extract

import "errors"

// Kind tags an extraction failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindCrash
	KindParse
)

// Error is the tagged failure returned by extraction adapters.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	prefix := "extract"
	switch e.Kind {
	case KindTimeout:
		prefix = "extract timeout"
	case KindCrash:
		prefix = "session crash"
	case KindParse:
		prefix = "extract parse"
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout wraps err as a retryable timeout failure.
func Timeout(err error) error { return &Error{Kind: KindTimeout, Err: err} }

// Crash wraps err as a lost-session failure requiring a session rebuild.
func Crash(err error) error { return &Error{Kind: KindCrash, Err: err} }

// Parse wraps err as a single-item parse failure.
func Parse(err error) error { return &Error{Kind: KindParse, Err: err} }

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether the error chain carries a timeout failure.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsCrash reports whether the error chain carries a crash failure.
func IsCrash(err error) bool { return KindOf(err) == KindCrash }
