package gemini

import "context"

// GenerateRequest is one generateContent call.
type GenerateRequest struct {
	Model     string
	Turns     []Turn
	Safety    []SafetySetting
	Grounding GroundingMode
}

type SafetyRating struct {
	Category    string
	Probability string
	Blocked     bool
}

// Candidate is one generated alternative. Parts is empty when the API withheld
// the content.
type Candidate struct {
	Parts         []string
	FinishReason  string
	SafetyRatings []SafetyRating
}

type GenerateResponse struct {
	Candidates   []Candidate
	BlockReason  string
	ModelVersion string
}

// FirstText returns the first text part of the first candidate.
func (r *GenerateResponse) FirstText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 || len(r.Candidates[0].Parts) == 0 {
		return "", false
	}
	return r.Candidates[0].Parts[0], true
}

// Generator calls the generative model.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
