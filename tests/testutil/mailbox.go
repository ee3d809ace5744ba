package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
)

// FakeMailbox is an in-memory source.Mailbox for tests.
type FakeMailbox struct {
	mu sync.Mutex

	ID       string
	Messages []model.Message
	Bodies   map[string]*model.MessageBody

	// FetchErrs are returned by successive FetchMessages calls before
	// Messages is returned.
	FetchErrs []error

	FetchCalls int
	Archived   []string
	Sent       []source.Reply
	Seen       map[string]bool
	Flagged    map[string]bool
}

var _ source.Mailbox = (*FakeMailbox)(nil)

// NewFakeMailbox returns a fake for accountID holding n messages, newest
// last, every other one unread.
func NewFakeMailbox(accountID string, n int) *FakeMailbox {
	return &FakeMailbox{
		ID:       accountID,
		Messages: MakeMessages(accountID, n),
		Bodies:   make(map[string]*model.MessageBody),
		Seen:     make(map[string]bool),
		Flagged:  make(map[string]bool),
	}
}

// MakeMessages builds n INBOX messages for accountID, one hour apart.
func MakeMessages(accountID string, n int) []model.Message {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, n)
	for i := range msgs {
		uid := uint32(i + 1)
		msgs[i] = model.Message{
			ID:        model.MessageKey(accountID, "INBOX", uid),
			AccountID: accountID,
			Mailbox:   "INBOX",
			UID:       uid,
			MessageID: fmt.Sprintf("m%d@example.com", uid),
			Subject:   fmt.Sprintf("Message %d", uid),
			FromName:  "Sender",
			FromAddr:  "sender@example.com",
			Date:      base.Add(time.Duration(i) * time.Hour),
			Seen:      i%2 == 1,
			FetchedAt: base,
		}
	}
	return msgs
}

func (f *FakeMailbox) AccountID() string { return f.ID }

func (f *FakeMailbox) ValidateConnection(context.Context) (string, error) {
	return f.ID, nil
}

func (f *FakeMailbox) FetchMessages(ctx context.Context, opts source.FetchOptions) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FetchCalls++
	if len(f.FetchErrs) > 0 {
		err := f.FetchErrs[0]
		f.FetchErrs = f.FetchErrs[1:]
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msgs := append([]model.Message(nil), f.Messages...)
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[len(msgs)-opts.Limit:]
	}
	return msgs, nil
}

func (f *FakeMailbox) FetchBody(_ context.Context, msg model.Message) (*model.MessageBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.Bodies[msg.ID]; ok {
		return b, nil
	}
	return &model.MessageBody{
		MessageID: msg.MessageID,
		Headers:   map[string]string{"From": msg.FromAddr, "Subject": msg.Subject},
		TextBody:  "Body of " + msg.Subject,
	}, nil
}

func (f *FakeMailbox) SetSeen(_ context.Context, msg model.Message, seen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Seen[msg.ID] = seen
	return nil
}

func (f *FakeMailbox) SetFlagged(_ context.Context, msg model.Message, flagged bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Flagged[msg.ID] = flagged
	return nil
}

func (f *FakeMailbox) Archive(_ context.Context, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Archived = append(f.Archived, msg.ID)
	return nil
}

func (f *FakeMailbox) SendReply(_ context.Context, reply source.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, reply)
	return nil
}

func (f *FakeMailbox) Search(_ context.Context, query string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Message
	for _, m := range f.Messages {
		if strings.Contains(strings.ToLower(m.Subject), strings.ToLower(query)) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// FetchCount returns how many times FetchMessages was called.
func (f *FakeMailbox) FetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FetchCalls
}
