package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/store"
)

const demoAccount = "demo"

var (
	demoSenders = []struct{ name, addr string }{
		{"Alice Martin", "alice@example.com"},
		{"Build Bot", "ci@example.com"},
		{"Carol Nguyen", "carol@example.org"},
		{"Dmitri Ivanov", "dmitri@example.net"},
		{"Billing", "billing@example.com"},
	}
	demoSubjects = []string{
		"Weekly sync notes",
		"Build failed on main",
		"Invoice %d is ready",
		"Lunch on Friday?",
		"Re: design review",
		"Your order has shipped",
	}
)

// seedDemo fills s with n generated INBOX messages, one minute apart.
func seedDemo(ctx context.Context, s store.Store, n int) error {
	now := time.Now().Truncate(time.Minute)
	msgs := make([]model.Message, n)
	for i := range msgs {
		uid := uint32(i + 1)
		sender := demoSenders[i%len(demoSenders)]
		subject := demoSubjects[i%len(demoSubjects)]
		if subject == "Invoice %d is ready" {
			subject = fmt.Sprintf(subject, 1000+i)
		}
		msgs[i] = model.Message{
			ID:        model.MessageKey(demoAccount, "INBOX", uid),
			AccountID: demoAccount,
			Mailbox:   "INBOX",
			UID:       uid,
			MessageID: fmt.Sprintf("demo-%d@mailterm.invalid", uid),
			Subject:   subject,
			FromName:  sender.name,
			FromAddr:  sender.addr,
			To:        []string{"me@example.com"},
			Date:      now.Add(-time.Duration(n-i) * time.Minute),
			Seen:      i%3 != 0,
			Flagged:   i%17 == 0,
			FetchedAt: now,
		}
	}
	return s.UpsertMessages(ctx, msgs)
}
