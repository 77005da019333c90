// Package mint defines the error taxonomy shared across the mod
// integration pipeline (pak codec, providers, content store, integrator,
// installer). Components wrap underlying causes and tag them with one of
// the Kinds below so callers can distinguish recoverable per-mod failures
// from run-fatal ones without string matching.
package mint

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the pipeline distinguishes.
type Kind string

const (
	KindSpecParse           Kind = "SpecParse"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindHTTPStatus          Kind = "HttpStatus"
	KindRateLimited         Kind = "RateLimited"
	KindAuthMissing         Kind = "AuthMissing"
	KindAuthRejected        Kind = "AuthRejected"
	KindPayloadTooLarge     Kind = "PayloadTooLarge"
	KindIntegrityMismatch   Kind = "IntegrityMismatch"
	KindUnsupportedPakVer   Kind = "UnsupportedPakVersion"
	KindCorruptPak          Kind = "CorruptPak"
	KindMergeCaseCollision  Kind = "MergeCaseCollision"
	KindInstallFailed       Kind = "InstallFailed"
	KindCancelled           Kind = "Cancelled"
	KindIO                  Kind = "Io"
)

// Error is the single error type returned by every pipeline component.
// Stage is only populated for KindInstallFailed, naming the installer step
// that failed (see internal/installer).
type Error struct {
	Kind    Kind
	Stage   string
	Code    int // HTTP status, when Kind == KindHTTPStatus
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Message)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s(%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &mint.Error{Kind: k}) style matching by comparing Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an Error of the given kind with no wrapped cause; use Wrap to
// attach one.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WrapStage builds a KindInstallFailed error tagged with the installer
// stage that failed, so rollback logic and status-bar rendering can name it.
func WrapStage(stage string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInstallFailed, Stage: stage, Message: fmt.Sprintf(format, args...), Err: cause}
}

// HTTPStatus builds a KindHTTPStatus error carrying the response code.
func HTTPStatus(code int, format string, args ...any) *Error {
	return &Error{Kind: KindHTTPStatus, Code: code, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or something it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// Cancelled constructs the well-known cancellation error. Cancellation is
// reported as status, never escalated as a failure.
func Cancelled(op string) *Error {
	return &Error{Kind: KindCancelled, Message: fmt.Sprintf("%s: cancelled", op)}
}
