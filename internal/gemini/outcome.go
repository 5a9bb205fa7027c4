package gemini

import "errors"

var (
	ErrRateLimited = errors.New("gemini: rate limit exceeded")
	ErrNoMessages  = errors.New("gemini: no messages to send")
)

// Assistant turns persisted when no generated text is available.
const (
	WithheldMessage = "No valid response generated due to safety constraints."
	FailureMessage  = "Failed to invoke [Gemini] api!"
)

// DefaultThrottleMessage is the reply text when the rate limit is hit.
const DefaultThrottleMessage = "You're asking too fast, please take a short break and try again."

// OutcomeKind classifies one pass through the reply pipeline.
type OutcomeKind int

const (
	OutcomeText OutcomeKind = iota
	OutcomeWithheld
	OutcomeRateLimited
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeText:
		return "text"
	case OutcomeWithheld:
		return "withheld"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Outcome is the result of invoking the model for one query.
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	Response *GenerateResponse
	Err      error
}
