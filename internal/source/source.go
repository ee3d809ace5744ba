package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/mailterm/internal/model"
)

// AuthError indicates that authentication has failed or been rejected for
// an account. It is returned by mailbox clients when a login fails.
type AuthError struct {
	AccountID string
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.AccountID, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// FetchOptions controls which messages FetchMessages returns.
type FetchOptions struct {
	// Since limits the fetch to messages newer than this time. Zero means
	// no lower bound.
	Since time.Time

	// Limit keeps only the most recent Limit messages. Zero means all.
	Limit int
}

// Reply is an outgoing answer to an existing message.
type Reply struct {
	// Original is the message being answered.
	Original model.Message

	// OriginalBody is quoted below the reply when non-empty.
	OriginalBody string

	To      string
	Subject string
	Body    string
}

// Mailbox defines the contract for a remote mail account.
type Mailbox interface {
	// AccountID returns the configured account identifier.
	AccountID() string

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchMessages retrieves message summaries, oldest first.
	FetchMessages(ctx context.Context, opts FetchOptions) ([]model.Message, error)

	// FetchBody retrieves and parses the full content of one message.
	FetchBody(ctx context.Context, msg model.Message) (*model.MessageBody, error)

	SetSeen(ctx context.Context, msg model.Message, seen bool) error
	SetFlagged(ctx context.Context, msg model.Message, flagged bool) error

	// Archive moves the message out of its mailbox.
	Archive(ctx context.Context, msg model.Message) error

	// SendReply sends a reply and marks the original as answered.
	SendReply(ctx context.Context, reply Reply) error

	// Search finds messages whose text matches query.
	Search(ctx context.Context, query string, limit int) ([]model.Message, error)
}
