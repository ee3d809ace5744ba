package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/store"
	"github.com/nhle/mailterm/tests/testutil"
)

func seedMessages(t *testing.T, s *store.SQLiteStore, n int) []model.Message {
	t.Helper()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, n)
	for i := range msgs {
		uid := uint32(i + 1)
		msgs[i] = model.Message{
			ID:        model.MessageKey("acct", "INBOX", uid),
			AccountID: "acct",
			Mailbox:   "INBOX",
			UID:       uid,
			MessageID: fmt.Sprintf("m%d@example.com", uid),
			Subject:   fmt.Sprintf("Subject %d", uid),
			FromName:  "Alice",
			FromAddr:  "alice@example.com",
			To:        []string{"me@example.com"},
			Date:      base.Add(time.Duration(i) * time.Hour),
			Seen:      i%2 == 0,
			FetchedAt: base,
		}
	}
	require.NoError(t, s.UpsertMessages(context.Background(), msgs))
	return msgs
}

func TestUpsertAndGetMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	seedMessages(t, s, 5)

	got, err := s.GetMessages(ctx, store.MessageFilter{})
	require.NoError(t, err)
	require.Len(t, got, 5)

	// Newest first.
	assert.Equal(t, uint32(5), got[0].UID)
	assert.Equal(t, uint32(1), got[4].UID)
	assert.Equal(t, []string{"me@example.com"}, got[0].To)

	page, err := s.GetMessages(ctx, store.MessageFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint32(3), page[0].UID)
}

func TestGetMessagesFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	seedMessages(t, s, 6)

	unread, err := s.GetMessages(ctx, store.MessageFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 3)
	for _, m := range unread {
		assert.False(t, m.Seen)
	}

	q := "Subject 4"
	found, err := s.GetMessages(ctx, store.MessageFilter{Query: &q})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(4), found[0].UID)

	other := "other"
	none, err := s.GetMessages(ctx, store.MessageFilter{AccountID: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertPreservesAnswered(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, s, 1)

	require.NoError(t, s.SetAnswered(ctx, msgs[0].ID))

	// A refresh from the server does not know about the local reply.
	msgs[0].Subject = "Updated"
	require.NoError(t, s.UpsertMessages(ctx, msgs))

	got, err := s.GetMessageByID(ctx, msgs[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Answered)
	assert.Equal(t, "Updated", got.Subject)
}

func TestFlagsAndDelete(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, s, 4)

	n, err := s.CountUnread(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.SetSeen(ctx, msgs[1].ID, true))
	require.NoError(t, s.SetFlagged(ctx, msgs[1].ID, true))

	got, err := s.GetMessageByID(ctx, msgs[1].ID)
	require.NoError(t, err)
	assert.True(t, got.Seen)
	assert.True(t, got.Flagged)

	n, err = s.CountUnread(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteMessage(ctx, msgs[1].ID))
	_, err = s.GetMessageByID(ctx, msgs[1].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.SetSeen(ctx, "missing", true), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteMessage(ctx, "missing"), store.ErrNotFound)
}

func TestDrafts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.GetDraftForMessage(ctx, "acct:INBOX:1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	d := &model.Draft{ReplyTo: "acct:INBOX:1", To: "bob@example.com", Subject: "Re: hi", Body: "first"}
	require.NoError(t, s.SaveDraft(ctx, d))
	require.NotEmpty(t, d.ID)

	// A second save for the same message replaces the first draft.
	d2 := &model.Draft{ReplyTo: "acct:INBOX:1", To: "bob@example.com", Subject: "Re: hi", Body: "second"}
	require.NoError(t, s.SaveDraft(ctx, d2))
	assert.Equal(t, d.ID, d2.ID)

	got, err := s.GetDraftForMessage(ctx, "acct:INBOX:1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Body)

	require.NoError(t, s.DeleteDraft(ctx, got.ID))
	_, err = s.GetDraftForMessage(ctx, "acct:INBOX:1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.DeleteDraft(ctx, got.ID))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/mail.db"

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	seedMessages(t, s, 2)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetMessages(context.Background(), store.MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
