package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/gemini-bridge/pkg/logging"
)

// Manager appends turns to stored sessions. Operations on the same conversation
// id are serialised; different ids proceed in parallel.
type Manager struct {
	store        Store
	systemPrompt string
	maxTokens    int
	logger       *logging.Logger
	locks        keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithSystemPrompt seeds new sessions with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(m *Manager) {
		m.systemPrompt = strings.TrimSpace(prompt)
	}
}

// WithMaxTokens bounds the history size; older turns are discarded past it.
func WithMaxTokens(n int) Option {
	return func(m *Manager) {
		m.maxTokens = n
	}
}

// NewManager creates a session manager over store.
func NewManager(store Store, logger *logging.Logger, opts ...Option) *Manager {
	if store == nil {
		panic("session: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		store:  store,
		logger: logger,
		locks:  keyedMutex{locks: make(map[string]*keyLock)},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FetchOrCreate returns the stored session for id, creating an empty one if needed.
func (m *Manager) FetchOrCreate(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	unlock := m.locks.Lock(id)
	defer unlock()
	return m.fetchOrCreate(ctx, id)
}

// Query appends the user's query to the session and returns the resulting history.
func (m *Manager) Query(ctx context.Context, query, id string) ([]Message, error) {
	return m.appendAndSave(ctx, id, func(s *Session) { s.AddUser(query) })
}

// Reply appends the assistant's reply to the session.
func (m *Manager) Reply(ctx context.Context, text, id string) error {
	_, err := m.appendAndSave(ctx, id, func(s *Session) { s.AddAssistant(text) })
	return err
}

// Clear removes a conversation's history.
func (m *Manager) Clear(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	unlock := m.locks.Lock(id)
	defer unlock()
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session cleared", "session_id", id)
	return nil
}

func (m *Manager) appendAndSave(ctx context.Context, id string, mutate func(*Session)) ([]Message, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidID
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, err := m.fetchOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(sess)
	if dropped := sess.DiscardExceeding(m.maxTokens); dropped > 0 {
		m.logger.Debug("session history trimmed",
			"session_id", id,
			"dropped", dropped,
			"max_tokens", m.maxTokens,
		)
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess.History(), nil
}

func (m *Manager) fetchOrCreate(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.Load(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("session: fetch %s: %w", id, err)
	}
	return New(id, m.systemPrompt), nil
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
