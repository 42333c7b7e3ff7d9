package extend

import (
	"errors"

	"github.com/satindergrewal/loopstretch/internal/beat"
	"github.com/satindergrewal/loopstretch/internal/generate"
)

var (
	ErrParse             = errors.New("invalid time mark")
	ErrDegenerateSection = errors.New("section is empty or outside the recording")
	ErrLoopCountExceeded = errors.New("loop count exceeds limit")
	ErrEncodeDecode      = errors.New("audio could not be decoded or encoded")
	ErrInvalidRequest    = errors.New("invalid request")

	ErrNoBeatsDetected   = beat.ErrNoBeatsDetected
	ErrGenerationFailed  = generate.ErrGenerationFailed
	ErrGenerationTimeout = generate.ErrGenerationTimeout
	ErrRemoteService     = generate.ErrRemoteService
)

// Kind names the error class of err for callers that report it (HTTP
// responses, CLI messages, metrics labels). nil maps to "".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrDegenerateSection):
		return "degenerate_section"
	case errors.Is(err, ErrNoBeatsDetected):
		return "no_beats_detected"
	case errors.Is(err, ErrLoopCountExceeded):
		return "loop_count_exceeded"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrGenerationTimeout):
		return "generation_timeout"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, ErrRemoteService):
		return "remote_service_error"
	case errors.Is(err, ErrEncodeDecode):
		return "encode_decode_error"
	default:
		return "internal"
	}
}
