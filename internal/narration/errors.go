package narration

import (
	"errors"
	"strconv"
)

var (
	// ErrNotConfigured is returned by narrate_text before configure has
	// been called with at least an LLM API key.
	ErrNotConfigured = errors.New("narration: session is not configured")

	// ErrUpstreamRateLimit indicates the LLM or TTS provider rejected the
	// request for rate-limit reasons.
	ErrUpstreamRateLimit = errors.New("narration: upstream rate limit")

	// ErrUpstreamAPI indicates the LLM or TTS provider call failed for any
	// other API-level reason.
	ErrUpstreamAPI = errors.New("narration: upstream api error")

	// ErrDecode indicates a single audio blob could not be decoded.
	ErrDecode = errors.New("narration: audio decode failed")

	// ErrCancellationTimeout indicates a narration task exceeded its
	// per-request timeout and was abandoned.
	ErrCancellationTimeout = errors.New("narration: request timed out")
)

// UpstreamError carries provider diagnostic detail alongside a sentinel kind
// so callers can both errors.Is against the kind and inspect status/URL.
type UpstreamError struct {
	Kind     error
	Provider string
	Status   int
	Message  string
	URL      string
}

func (e *UpstreamError) Error() string {
	return e.Kind.Error() + ": " + e.Provider + " status=" + strconv.Itoa(e.Status) + " " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Kind }
