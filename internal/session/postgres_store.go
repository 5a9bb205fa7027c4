package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists sessions in the chat_sessions table.
type PostgresStore struct {
	db     pgxDB
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

// NewPostgresStore creates a store over a pgx pool (or anything with the same
// Exec/QueryRow surface). Sessions idle longer than ttl read as missing.
func NewPostgresStore(db pgxDB, ttl time.Duration, tracer trace.Tracer) *PostgresStore {
	if db == nil {
		panic("session: postgres pool cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("gemini-bridge.internal.session.postgres")
	}
	return &PostgresStore{db: db, ttl: ttl, tracer: tracer, now: time.Now}
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.postgres.load", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	var (
		systemPrompt string
		raw          []byte
		updatedAt    time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT system_prompt, messages, updated_at FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&systemPrompt, &raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", id, err)
	}
	if s.ttl > 0 && s.now().Sub(updatedAt) > s.ttl {
		return nil, ErrNotFound
	}

	sess := &Session{ID: id, SystemPrompt: systemPrompt, UpdatedAt: updatedAt}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sess.Messages); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: failed to decode %s: %w", id, err)
		}
	}
	return sess, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.postgres.save", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.Int("session.messages", len(sess.Messages)),
	))
	defer span.End()

	messages := sess.Messages
	if messages == nil {
		messages = []Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", sess.ID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO chat_sessions (id, system_prompt, messages, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			system_prompt = EXCLUDED.system_prompt,
			messages = EXCLUDED.messages,
			updated_at = EXCLUDED.updated_at
	`, sess.ID, sess.SystemPrompt, raw, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.postgres.delete", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if _, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete %s: %w", id, err)
	}
	return nil
}
