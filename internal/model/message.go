package model

import (
	"fmt"
	"strings"
	"time"
)

// Message is the summary of a single email as shown in the message list.
type Message struct {
	// ID is the internal unique identifier, scoped to the account.
	ID string `json:"id"`

	// AccountID identifies the configured account the message belongs to.
	AccountID string `json:"account_id"`

	// Mailbox is the IMAP mailbox the message was fetched from.
	Mailbox string `json:"mailbox"`

	// UID is the IMAP UID within Mailbox.
	UID uint32 `json:"uid"`

	// MessageID is the RFC 5322 Message-ID header, without angle brackets.
	MessageID string `json:"message_id"`

	Subject  string   `json:"subject"`
	FromName string   `json:"from_name"`
	FromAddr string   `json:"from_addr"`
	To       []string `json:"to"`

	Date time.Time `json:"date"`

	Seen     bool `json:"seen"`
	Flagged  bool `json:"flagged"`
	Answered bool `json:"answered"`

	// FetchedAt is when this message was last retrieved from the server.
	FetchedAt time.Time `json:"fetched_at"`
}

// ItemID returns the stable identity used by the virtual list.
func (m Message) ItemID() string { return m.ID }

// From returns the display form of the sender.
func (m Message) From() string {
	if m.FromName != "" {
		return m.FromName
	}
	return m.FromAddr
}

// ReplySubject returns the subject prefixed with "Re:" unless it already is.
func (m Message) ReplySubject() string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(m.Subject)), "re:") {
		return m.Subject
	}
	return "Re: " + m.Subject
}

// MessageKey builds the internal ID for a message in an account mailbox.
func MessageKey(accountID, mailbox string, uid uint32) string {
	return fmt.Sprintf("%s:%s:%d", accountID, mailbox, uid)
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

// MessageBody is the full parsed content of a message.
type MessageBody struct {
	MessageID   string            `json:"message_id"`
	Headers     map[string]string `json:"headers"`
	TextBody    string            `json:"text_body"`
	HTMLBody    string            `json:"html_body"`
	Attachments []Attachment      `json:"attachments"`
}

// Draft is an unsent reply.
type Draft struct {
	ID        string    `json:"id"`
	ReplyTo   string    `json:"reply_to"` // Message.ID being answered
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
