package nis

import "errors"

// Cycle-level failures. Each aborts the current fetch and leaves the
// published snapshot untouched. Callers classify with errors.Is.
var (
	// ErrResolution means the host name did not resolve to any IPv4 address.
	ErrResolution = errors.New("nis: host resolution failed")
	// ErrConnect means every resolved address refused or timed out.
	ErrConnect = errors.New("nis: could not connect to any address")
	ErrSend    = errors.New("nis: send request failed")
	// ErrReceiveTimeout means the daemon went silent for longer than the read timeout.
	ErrReceiveTimeout = errors.New("nis: receive timed out")
	ErrReceive        = errors.New("nis: receive failed")
	// ErrFrameTooBig means the daemon announced a frame of MaxFrameSize or more.
	ErrFrameTooBig = errors.New("nis: frame too big")
	// ErrIncompleteFields means the reply ended without every expected field.
	ErrIncompleteFields = errors.New("nis: reply missing expected fields")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrResolution, "resolution"},
	{ErrConnect, "connect"},
	{ErrSend, "send"},
	{ErrReceiveTimeout, "timeout"},
	{ErrReceive, "receive"},
	{ErrFrameTooBig, "too_big"},
	{ErrIncompleteFields, "incomplete"},
}

// Kind returns a short code for err suitable for log fields. Unclassified
// errors report "error"; nil reports "ok".
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "error"
}

// Retryable reports whether another fetch cycle may succeed without operator
// action. Only resolution failures are treated as fatal.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrResolution)
}

// wrapErr joins a sentinel with the underlying cause so both match errors.Is.
type wrapErr struct {
	kind  error
	cause error
}

func (e *wrapErr) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *wrapErr) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func wrap(kind, cause error) error { return &wrapErr{kind: kind, cause: cause} }
