package core

import "errors"

// Sentinel and typed errors surfaced to callers of the outbound API (§7 of
// the design: MediaUploadFailed and InvalidCallerArg are the only error
// kinds that propagate synchronously to a caller; everything inbound is
// repaired, logged, or routed to an UnexpectedErrorSink).
var (
	// ErrMediaUploadFailed is returned when the upload does not succeed:
	// the slot request fails, the server answers with a non-200 status, or
	// its response does not carry a URL.
	ErrMediaUploadFailed = errors.New("wacore: media upload failed")

	// ErrInvalidCallerArg is returned for caller mistakes detected before
	// any network activity: a document without an explicit mimetype, a
	// sticker with a caption, or an unknown media type.
	ErrInvalidCallerArg = errors.New("wacore: invalid argument")

	// ErrRetryCapExceeded marks a retry counter that has reached its cap.
	// Never returned to a caller; kept so tests can assert on it via
	// errors.Is against the internal bookkeeping result.
	ErrRetryCapExceeded = errors.New("wacore: retry cap exceeded")

	// ErrTransportClosed is returned internally by a Transport write
	// attempted after the connection closed. Never surfaces: callers of
	// the pipeline see it only as a debug log line (§7, TransportClosed).
	ErrTransportClosed = errors.New("wacore: transport closed")
)

// UnexpectedErrorSink receives any error from a spawned internal task that
// has no other defined handling path. err is never nil; context identifies
// the task that failed (e.g. "retry.request", "syncgate.fire").
type UnexpectedErrorSink func(err error, context string)

// NopErrorSink discards unexpected errors. Useful in tests that don't care
// about the sink, never appropriate for production use.
func NopErrorSink(error, string) {}
