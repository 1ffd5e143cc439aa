package domain

import "fmt"

// Kind is the taxonomy of error classes the core surfaces to callers.
// Callers switch on Kind rather than on error strings or exception types.
type Kind string

const (
	KindInvalidSender     Kind = "invalid_sender"
	KindInvalidRecipients Kind = "invalid_recipients"
	KindNoRecipients      Kind = "no_recipients"
	KindInvalidReplyTo    Kind = "invalid_reply_to"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindQueueFailed       Kind = "queue_failed"
	KindCrossTenant       Kind = "cross_tenant"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// Error is a tagged error value carrying one of the Kind values above plus
// the underlying cause. It replaces exception-based flow control.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged Error.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, otherwise
// returns KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// as is a tiny local errors.As to avoid importing errors in every caller
// that only needs KindOf.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
