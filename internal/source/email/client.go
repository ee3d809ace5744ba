package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailterm/internal/source"
)

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
// Every call opens its own connection.
type IMAPClient struct {
	accountID string
	host      string
	port      string
	username  string
	password  string
	tls       bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	accountID, host, port, username, password string, useTLS bool,
) *IMAPClient {
	return &IMAPClient{
		accountID: accountID,
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		tls:       useTLS,
	}
}

// dialTimeout bounds the TCP and TLS handshake with the IMAP server.
const dialTimeout = 15 * time.Second

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
//
// The connection is closed when ctx is done, which unblocks any
// command still waiting on the server.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(c.host, c.port)
	tlsConfig := &tls.Config{ServerName: c.host}

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	var client *imapclient.Client
	if c.tls {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		client = imapclient.New(tlsConn, nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
		}
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("logging in to %s: %w", addr, ctxErr)
		}
		return nil, &source.AuthError{
			AccountID: c.accountID,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// withMailbox connects, selects mailbox and runs fn with the client.
func (c *IMAPClient) withMailbox(
	ctx context.Context,
	mailbox string,
	fn func(*imapclient.Client) error,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	return fn(client)
}

// FetchEnvelopes selects mailbox, searches with criteria and returns the
// envelopes of the newest limit matches.
func (c *IMAPClient) FetchEnvelopes(
	ctx context.Context,
	mailbox string,
	criteria *imap.SearchCriteria,
	limit int,
) ([]Envelope, error) {
	var envelopes []Envelope

	err := c.withMailbox(ctx, mailbox, func(client *imapclient.Client) error {
		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching messages: %w", err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		// Take the most recent.
		if limit > 0 && len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}

		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
			Envelope: true,
			Flags:    true,
			UID:      true,
		})
		defer fetchCmd.Close()

		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}

			buf, err := msg.Collect()
			if err != nil {
				continue
			}

			envelopes = append(envelopes, envelopeFromBuffer(buf))
		}

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetching envelopes: %w", err)
		}
		return nil
	})

	return envelopes, err
}

// FetchMessage selects mailbox and fetches the full message for uid
// without setting \Seen.
func (c *IMAPClient) FetchMessage(
	ctx context.Context, mailbox string, uid uint32,
) (*ParsedMessage, error) {
	var parsed *ParsedMessage

	err := c.withMailbox(ctx, mailbox, func(client *imapclient.Client) error {
		bodySection := &imap.FetchItemBodySection{Peek: true}

		fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
			Envelope:    true,
			Flags:       true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		})
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message UID %d not found in %s", uid, mailbox)
		}

		buf, err := msg.Collect()
		if err != nil {
			return fmt.Errorf("collecting message data: %w", err)
		}

		parsed = &ParsedMessage{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			parsed.TextBody, parsed.HTMLBody, parsed.Attachments = parseMIMEBody(raw)
		}

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("closing fetch: %w", err)
		}
		return nil
	})

	return parsed, err
}

// SetFlags adds (add=true) or removes flags on a message.
func (c *IMAPClient) SetFlags(
	ctx context.Context,
	mailbox string,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	return c.withMailbox(ctx, mailbox, func(client *imapclient.Client) error {
		op := imap.StoreFlagsAdd
		if !add {
			op = imap.StoreFlagsDel
		}

		return client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
			Op:     op,
			Silent: true,
			Flags:  flags,
		}, nil).Close()
	})
}

// MoveTo moves the message to the first destination that accepts it,
// falling back to marking it deleted.
func (c *IMAPClient) MoveTo(
	ctx context.Context,
	mailbox string,
	uid uint32,
	destinations []string,
) error {
	return c.withMailbox(ctx, mailbox, func(client *imapclient.Client) error {
		uidSet := imap.UIDSetNum(imap.UID(uid))

		for _, folder := range destinations {
			if _, err := client.Move(uidSet, folder).Wait(); err == nil {
				return nil
			}
		}

		return client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagDeleted},
		}, nil).Close()
	})
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			env.FromName = from.Name
			env.FromAddr = from.Addr()
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}

// parseMIMEBody parses a raw RFC 5322 message using go-message and
// extracts the text/plain body, text/html body and attachment metadata.
func parseMIMEBody(raw []byte) (
	textBody string, htmlBody string, attachments []Attachment,
) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat the whole thing as plain text.
		return string(raw), "", nil
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain") && textBody == "":
				textBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
				htmlBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, Attachment{
				Filename: filename,
				Size:     n,
				MIMEType: contentType,
			})
		}
	}

	return textBody, htmlBody, attachments
}
