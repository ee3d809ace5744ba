package email

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
)

// buildReply composes the RFC 5322 bytes for reply and returns them with
// the envelope recipients.
func buildReply(from string, reply source.Reply, now time.Time) ([]byte, []string, error) {
	orig := reply.Original

	to := strings.TrimSpace(reply.To)
	if to == "" {
		to = orig.FromAddr
	}
	rcpts, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing recipients %q: %w", to, err)
	}
	if len(rcpts) == 0 {
		return nil, nil, fmt.Errorf("reply has no recipients")
	}

	subject := reply.Subject
	if subject == "" {
		subject = orig.ReplySubject()
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", rcpts)
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, nil, fmt.Errorf("generating message id: %w", err)
	}
	if orig.MessageID != "" {
		h.SetMsgIDList("In-Reply-To", []string{orig.MessageID})
		h.SetMsgIDList("References", []string{orig.MessageID})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, replyText(reply)); err != nil {
		return nil, nil, fmt.Errorf("writing reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing message writer: %w", err)
	}

	addrs := make([]string, 0, len(rcpts))
	for _, r := range rcpts {
		addrs = append(addrs, r.Address)
	}
	return buf.Bytes(), addrs, nil
}

// replyText returns the reply body followed by the quoted original.
func replyText(reply source.Reply) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(reply.Body, "\n"))
	b.WriteString("\n")

	if reply.OriginalBody == "" {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(QuoteHeader(reply.Original))
	b.WriteString("\n")
	b.WriteString(Quote(reply.OriginalBody))
	return b.String()
}

// QuoteHeader returns the attribution line placed above a quoted message.
func QuoteHeader(m model.Message) string {
	who := formatAddress(m.FromName, m.FromAddr)
	if m.Date.IsZero() {
		return who + " wrote:"
	}
	return fmt.Sprintf("On %s, %s wrote:", m.Date.Format("Mon, 2 Jan 2006 at 15:04"), who)
}

// Quote prefixes every line of body with "> ".
func Quote(body string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(strings.TrimRight(body, "\n")))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, ">") {
			b.WriteString(">" + line)
		} else {
			b.WriteString("> " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// sendMail delivers raw to rcpts using implicit TLS or STARTTLS.
func sendMail(cfg SMTPConfig, from string, rcpts []string, raw []byte) error {
	addr := cfg.Host + ":" + cfg.Port
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	var conn net.Conn
	var err error
	if cfg.TLS {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: 30 * time.Second}, "tcp", addr, tlsConfig)
	} else {
		conn, err = net.DialTimeout("tcp", addr, 30*time.Second)
	}
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !cfg.TLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &source.AuthError{
			AccountID: cfg.AccountID,
			Message:   fmt.Sprintf("SMTP auth: %v", err),
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// FormatRecipient returns the reply address for m in a form that
// mail.ParseAddressList accepts.
func FormatRecipient(m model.Message) string {
	if m.FromAddr == "" {
		return ""
	}
	if m.FromName == "" {
		return m.FromAddr
	}
	if !strings.ContainsAny(m.FromName, `,;:<>@"()[]\.`) && isASCII(m.FromName) {
		return m.FromName + " <" + m.FromAddr + ">"
	}
	addr := mail.Address{Name: m.FromName, Address: m.FromAddr}
	return addr.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
