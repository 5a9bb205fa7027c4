// Package bridge holds the values exchanged between the message router and a bot:
// the inbound Context and the outbound Reply.
package bridge

import "strings"

// ContextType identifies the kind of inbound content.
type ContextType string

const (
	ContextText     ContextType = "TEXT"
	ContextVoice    ContextType = "VOICE"
	ContextImage    ContextType = "IMAGE"
	ContextFile     ContextType = "FILE"
	ContextVideo    ContextType = "VIDEO"
	ContextSharing  ContextType = "SHARING"
	ContextImageGen ContextType = "IMAGE_CREATE"
)

// ParseContextType maps a wire value to a ContextType. Unknown values are kept
// as-is so the bot can reject them as unsupported.
func ParseContextType(s string) ContextType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ContextText
	}
	return ContextType(s)
}

// Context describes one inbound query.
type Context struct {
	Type      ContextType
	SessionID string
	// Kwargs carries router-specific extras (channel, receiver, ...).
	Kwargs map[string]string
}

// NewTextContext returns a plain-text context for sessionID.
func NewTextContext(sessionID string) Context {
	return Context{Type: ContextText, SessionID: sessionID}
}
