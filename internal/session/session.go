// Package session keeps per-conversation chat history for the bot.
package session

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNotFound is returned by a Store when a session does not exist or has expired.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidID is returned for a blank conversation id.
	ErrInvalidID = errors.New("session: conversation id is required")
)

// Message is one role-tagged entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the ordered history of one conversation, oldest first.
type Session struct {
	ID           string    `json:"id"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New returns an empty session seeded with the system prompt, if any.
func New(id, systemPrompt string) *Session {
	s := &Session{ID: id, SystemPrompt: systemPrompt}
	s.Reset()
	return s
}

// Reset drops all history except the system prompt.
func (s *Session) Reset() {
	s.Messages = s.Messages[:0]
	if s.SystemPrompt != "" {
		s.Messages = append(s.Messages, Message{Role: RoleSystem, Content: s.SystemPrompt})
	}
}

func (s *Session) AddUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

func (s *Session) AddAssistant(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
}

// History returns a copy of the messages.
func (s *Session) History() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// EstimateTokens approximates the prompt size of the history by counting characters.
func (s *Session) EstimateTokens() int {
	total := 0
	for _, msg := range s.Messages {
		total += utf8.RuneCountInString(msg.Content)
	}
	return total
}

// DiscardExceeding removes the oldest non-system messages until the history fits
// maxTokens. The newest non-system message is always kept. It returns the number
// of messages removed.
func (s *Session) DiscardExceeding(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}
	removed := 0
	tokens := s.EstimateTokens()
	for tokens > maxTokens {
		oldest, nonSystem := -1, 0
		for i, msg := range s.Messages {
			if msg.Role == RoleSystem {
				continue
			}
			if oldest < 0 {
				oldest = i
			}
			nonSystem++
		}
		if nonSystem <= 1 {
			break
		}
		tokens -= utf8.RuneCountInString(s.Messages[oldest].Content)
		s.Messages = append(s.Messages[:oldest], s.Messages[oldest+1:]...)
		removed++
	}
	return removed
}
