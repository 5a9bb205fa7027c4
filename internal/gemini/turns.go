package gemini

import (
	"slices"

	"github.com/wolfman30/gemini-bridge/internal/session"
)

// Wire roles understood by the Gemini API.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one Gemini content entry: a role and its text parts.
type Turn struct {
	Role  string
	Parts []string
}

// Text returns the first part, or "" when the turn has none.
func (t Turn) Text() string {
	if len(t.Parts) == 0 {
		return ""
	}
	return t.Parts[0]
}

// FilterMessages returns the longest strictly alternating user/assistant suffix
// of the history, newest message being a user turn. System messages are kept
// wherever they occur and do not take part in the alternation. When the history
// holds a run of same-role messages only the newest of the run survives.
func FilterMessages(messages []session.Message) []session.Message {
	kept := make([]session.Message, 0, len(messages))
	turn := session.RoleUser
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		switch msg.Role {
		case session.RoleSystem:
			kept = append(kept, msg)
		case turn:
			kept = append(kept, msg)
			turn = nextTurn(turn)
		}
	}
	slices.Reverse(kept)
	return kept
}

func nextTurn(role string) string {
	if role == session.RoleUser {
		return session.RoleAssistant
	}
	return session.RoleUser
}

// ConvertMessages maps history messages onto Gemini turns. System messages
// become user turns; unknown roles are dropped.
func ConvertMessages(messages []session.Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case session.RoleUser, session.RoleSystem:
			role = RoleUser
		case session.RoleAssistant:
			role = RoleModel
		default:
			continue
		}
		turns = append(turns, Turn{Role: role, Parts: []string{msg.Content}})
	}
	return turns
}
