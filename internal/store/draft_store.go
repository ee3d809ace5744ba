package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailterm/internal/model"
)

// SaveDraft inserts or updates a draft. Generates a UUID if ID is empty.
// A reply has at most one draft; saving a new one for the same message
// replaces the old.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft *model.Draft) error {
	now := time.Now().UTC()
	if draft.ID == "" {
		if draft.ReplyTo != "" {
			existing, err := s.GetDraftForMessage(ctx, draft.ReplyTo)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if existing != nil {
				draft.ID = existing.ID
				draft.CreatedAt = existing.CreatedAt
			}
		}
		if draft.ID == "" {
			draft.ID = uuid.New().String()
		}
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, reply_to, to_addr, subject, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reply_to   = excluded.reply_to,
			to_addr    = excluded.to_addr,
			subject    = excluded.subject,
			body       = excluded.body,
			updated_at = excluded.updated_at`,
		draft.ID, draft.ReplyTo, draft.To, draft.Subject, draft.Body,
		draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", draft.ID, err)
	}
	return nil
}

// GetDraftForMessage returns the most recent draft replying to messageID.
func (s *SQLiteStore) GetDraftForMessage(ctx context.Context, messageID string) (*model.Draft, error) {
	var d struct {
		ID        string    `db:"id"`
		ReplyTo   string    `db:"reply_to"`
		To        string    `db:"to_addr"`
		Subject   string    `db:"subject"`
		Body      string    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &d,
		"SELECT * FROM drafts WHERE reply_to = ? ORDER BY updated_at DESC LIMIT 1", messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft for %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting draft for %s: %w", messageID, err)
	}

	return &model.Draft{
		ID:        d.ID,
		ReplyTo:   d.ReplyTo,
		To:        d.To,
		Subject:   d.Subject,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// DeleteDraft removes a draft by ID. Deleting a missing draft is not an error.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting draft %s: %w", id, err)
	}
	return nil
}
