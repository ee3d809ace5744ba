package store

import (
	"context"
	"errors"

	"github.com/nhle/mailterm/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MessageFilter controls filtering and pagination for message queries.
// Results are always ordered newest first.
type MessageFilter struct {
	AccountID  *string
	Mailbox    *string
	UnreadOnly bool
	Query      *string
	Limit      int
	Offset     int
}

// Store defines the persistence interface for cached messages and drafts.
type Store interface {
	// === Messages ===

	UpsertMessages(ctx context.Context, msgs []model.Message) error
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	GetMessageByID(ctx context.Context, id string) (*model.Message, error)
	SetSeen(ctx context.Context, id string, seen bool) error
	SetFlagged(ctx context.Context, id string, flagged bool) error
	SetAnswered(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
	CountUnread(ctx context.Context, accountID string) (int, error)

	// === Drafts ===

	SaveDraft(ctx context.Context, draft *model.Draft) error
	GetDraftForMessage(ctx context.Context, messageID string) (*model.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
}
