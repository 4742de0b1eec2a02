// Package rerror defines the gateway's error taxonomy. Every error that can
// reach the HTTP boundary knows its own status code, so the request handler
// never has to re-classify an error by inspecting its message.
package rerror

import "fmt"

// Kind names one of the taxonomy's error categories.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindPlanParse     Kind = "plan-parse"
	KindUnknownSource Kind = "unknown-source"
	KindUpstreamFetch Kind = "upstream-fetch"
	KindFilesystem    Kind = "filesystem"
	KindSubprocess    Kind = "subprocess"
	KindAddressBind   Kind = "address-bind"
	KindInternal      Kind = "internal"
)

// Error is a classified, human-readable gateway error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus reports the status code the request handler should use when
// this error surfaces at the HTTP boundary. Startup-only kinds
// (configuration, address-bind) never reach a request and have no
// meaningful HTTP status; callers at the boundary should not encounter
// them, but they map to 500 defensively.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindPlanParse, KindUnknownSource, KindUpstreamFetch, KindFilesystem, KindSubprocess:
		return 400
	default:
		return 500
	}
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// PlanParse reports a structural problem with a request path: too few
// components, a malformed project name, a non-numeric job id.
func PlanParse(format string, args ...any) *Error {
	return newf(KindPlanParse, format, args...)
}

// UnknownSource reports that a plan item's prefix names no configured
// source.
func UnknownSource(name string) *Error {
	return newf(KindUnknownSource, "unknown source %q", name)
}

// UpstreamFetch wraps a failure talking to an upstream (Gitlab API, remote
// static source).
func UpstreamFetch(cause error, format string, args ...any) *Error {
	return wrap(KindUpstreamFetch, cause, format, args...)
}

// Filesystem wraps a local I/O failure (create/rename/open of a cache
// entry).
func Filesystem(cause error, format string, args ...any) *Error {
	return wrap(KindFilesystem, cause, format, args...)
}

// Subprocess wraps a non-zero exit from createrepo, the archive extractor,
// or the hardlink-copy helper.
func Subprocess(cause error, format string, args ...any) *Error {
	return wrap(KindSubprocess, cause, format, args...)
}

// Configuration reports a problem loading or validating the process
// configuration.
func Configuration(cause error, format string, args ...any) *Error {
	return wrap(KindConfiguration, cause, format, args...)
}

// AddressBind reports a failure to bind the HTTP listen address.
func AddressBind(cause error, addr string) *Error {
	return wrap(KindAddressBind, cause, "listen on %q", addr)
}

// Internal wraps an error that should never happen in correct operation.
func Internal(cause error, format string, args ...any) *Error {
	return wrap(KindInternal, cause, format, args...)
}
