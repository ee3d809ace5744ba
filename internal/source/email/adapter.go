package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
)

// commonArchiveFolders are tried after the configured archive mailbox.
var commonArchiveFolders = []string{
	"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive",
}

// Adapter implements source.Mailbox over IMAP and SMTP.
type Adapter struct {
	imapClient *IMAPClient
	smtpConfig SMTPConfig
	account    model.AccountConfig

	now func() time.Time
}

var _ source.Mailbox = (*Adapter)(nil)

// NewAdapter creates a mailbox for the account using password for both
// IMAP and SMTP.
func NewAdapter(account model.AccountConfig, password string) *Adapter {
	return &Adapter{
		imapClient: NewIMAPClient(
			account.ID, account.IMAPHost, account.IMAPPort,
			account.Username, password, account.TLS,
		),
		smtpConfig: SMTPConfig{
			AccountID: account.ID,
			Host:      account.SMTPHost,
			Port:      account.SMTPPort,
			Username:  account.Username,
			Password:  password,
			TLS:       account.TLS,
		},
		account: account,
		now:     time.Now,
	}
}

// AccountID returns the configured account identifier.
func (a *Adapter) AccountID() string {
	return a.account.ID
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating and selecting the mailbox. Returns the username on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	err := a.imapClient.withMailbox(ctx, a.mailbox(), func(*imapclient.Client) error {
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("validating email connection: %w", err)
	}
	return a.account.Username, nil
}

// FetchMessages retrieves recent message summaries from the mailbox.
func (a *Adapter) FetchMessages(
	ctx context.Context,
	opts source.FetchOptions,
) ([]model.Message, error) {
	criteria := &imap.SearchCriteria{}
	if !opts.Since.IsZero() {
		criteria.Since = opts.Since
	}

	envelopes, err := a.imapClient.FetchEnvelopes(ctx, a.mailbox(), criteria, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	return a.toMessages(envelopes), nil
}

// FetchBody retrieves the full content of msg. When only an HTML part
// exists the text body is derived from it.
func (a *Adapter) FetchBody(
	ctx context.Context,
	msg model.Message,
) (*model.MessageBody, error) {
	parsed, err := a.imapClient.FetchMessage(ctx, msg.Mailbox, msg.UID)
	if err != nil {
		return nil, fmt.Errorf("fetching body of %s: %w", msg.ID, err)
	}

	body := &model.MessageBody{
		MessageID: parsed.Envelope.MessageID,
		Headers:   make(map[string]string),
		TextBody:  parsed.TextBody,
		HTMLBody:  parsed.HTMLBody,
	}
	if body.TextBody == "" && body.HTMLBody != "" {
		body.TextBody = HTMLToText(body.HTMLBody)
	}

	env := parsed.Envelope
	body.Headers["From"] = formatAddress(env.FromName, env.FromAddr)
	if len(env.To) > 0 {
		body.Headers["To"] = strings.Join(env.To, ", ")
	}
	body.Headers["Subject"] = env.Subject
	if !env.Date.IsZero() {
		body.Headers["Date"] = env.Date.Format(time.RFC1123Z)
	}

	for _, att := range parsed.Attachments {
		body.Attachments = append(body.Attachments, model.Attachment{
			Filename: att.Filename,
			Size:     att.Size,
			MIMEType: att.MIMEType,
		})
	}

	return body, nil
}

// SetSeen adds or removes the \Seen flag.
func (a *Adapter) SetSeen(ctx context.Context, msg model.Message, seen bool) error {
	return a.imapClient.SetFlags(ctx, msg.Mailbox, msg.UID, []imap.Flag{imap.FlagSeen}, seen)
}

// SetFlagged adds or removes the \Flagged flag.
func (a *Adapter) SetFlagged(ctx context.Context, msg model.Message, flagged bool) error {
	return a.imapClient.SetFlags(ctx, msg.Mailbox, msg.UID, []imap.Flag{imap.FlagFlagged}, flagged)
}

// Archive moves msg to the configured archive mailbox, then to common
// archive folder names, and finally marks it deleted.
func (a *Adapter) Archive(ctx context.Context, msg model.Message) error {
	return a.imapClient.MoveTo(ctx, msg.Mailbox, msg.UID, a.archiveFolders())
}

// SendReply sends reply over SMTP and marks the original answered.
func (a *Adapter) SendReply(ctx context.Context, reply source.Reply) error {
	raw, rcpt, err := buildReply(a.account.Username, reply, a.now())
	if err != nil {
		return fmt.Errorf("building reply: %w", err)
	}

	if err := sendMail(a.smtpConfig, a.account.Username, rcpt, raw); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	return a.imapClient.SetFlags(
		ctx, reply.Original.Mailbox, reply.Original.UID,
		[]imap.Flag{imap.FlagAnswered}, true,
	)
}

// Search uses IMAP SEARCH TEXT to find messages.
func (a *Adapter) Search(
	ctx context.Context,
	query string,
	limit int,
) ([]model.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	envelopes, err := a.imapClient.FetchEnvelopes(ctx, a.mailbox(),
		&imap.SearchCriteria{Text: []string{query}}, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	return a.toMessages(envelopes), nil
}

func (a *Adapter) mailbox() string {
	if a.account.Mailbox == "" {
		return "INBOX"
	}
	return a.account.Mailbox
}

// archiveFolders returns the configured archive mailbox followed by the
// common names, without duplicates.
func (a *Adapter) archiveFolders() []string {
	folders := make([]string, 0, len(commonArchiveFolders)+1)
	if a.account.ArchiveMailbox != "" {
		folders = append(folders, a.account.ArchiveMailbox)
	}
	for _, f := range commonArchiveFolders {
		if f != a.account.ArchiveMailbox {
			folders = append(folders, f)
		}
	}
	return folders
}

func (a *Adapter) toMessages(envelopes []Envelope) []model.Message {
	fetchedAt := a.now()
	msgs := make([]model.Message, 0, len(envelopes))
	for _, env := range envelopes {
		msgs = append(msgs, a.envelopeToMessage(env, fetchedAt))
	}
	return msgs
}

// envelopeToMessage converts an Envelope to a model.Message.
func (a *Adapter) envelopeToMessage(env Envelope, fetchedAt time.Time) model.Message {
	mailbox := a.mailbox()
	return model.Message{
		ID:        model.MessageKey(a.account.ID, mailbox, env.UID),
		AccountID: a.account.ID,
		Mailbox:   mailbox,
		UID:       env.UID,
		MessageID: env.MessageID,
		Subject:   env.Subject,
		FromName:  env.FromName,
		FromAddr:  env.FromAddr,
		To:        env.To,
		Date:      env.Date,
		Seen:      env.HasFlag(string(imap.FlagSeen)),
		Flagged:   env.HasFlag(string(imap.FlagFlagged)),
		Answered:  env.HasFlag(string(imap.FlagAnswered)),
		FetchedAt: fetchedAt,
	}
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

// FormatSize formats a byte size into a human-readable string.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
