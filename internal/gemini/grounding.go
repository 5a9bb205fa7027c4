package gemini

import "strings"

// GroundingMode selects whether a call is augmented with web search.
type GroundingMode int

const (
	GroundingNone GroundingMode = iota
	GroundingSearch
)

func (g GroundingMode) String() string {
	if g == GroundingSearch {
		return "search"
	}
	return "none"
}

// DetectGrounding checks the last turn for prefix. On a match the prefix is
// removed once, the remaining text trimmed in place, and GroundingSearch
// returned. An empty prefix or an empty turn list never enables grounding,
// nor does a turn holding nothing but the prefix; that text is sent as is.
func DetectGrounding(turns []Turn, prefix string) GroundingMode {
	if prefix == "" || len(turns) == 0 {
		return GroundingNone
	}
	last := &turns[len(turns)-1]
	if len(last.Parts) == 0 || !strings.HasPrefix(last.Parts[0], prefix) {
		return GroundingNone
	}
	stripped := strings.TrimSpace(strings.TrimPrefix(last.Parts[0], prefix))
	if stripped == "" {
		return GroundingNone
	}
	last.Parts[0] = stripped
	return GroundingSearch
}
