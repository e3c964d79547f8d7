package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Message is one inbound email as delivered by a transport, before triage.
type Message struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"sender_email"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Transport fetches inbound mail and sends replies.
type Transport interface {
	// Fetch returns messages received at or after since.
	Fetch(ctx context.Context, since time.Time) ([]Message, error)
	Send(ctx context.Context, to, subject, body string) error
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// Parse reads an RFC 5322 message and keeps the first text/plain part as the
// body, falling back to tag-stripped HTML.
func Parse(r io.Reader) (*Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &Message{}
	msg.MessageID, _ = h.MessageID()
	msg.Subject, _ = h.Subject()
	msg.From = Address(h.Get("From"))
	if date, err := h.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date.UTC()
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}
		if p == nil {
			continue
		}
		inline, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := inline.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}
		switch {
		case ct == "text/plain" && plain == "":
			plain = string(b)
		case ct == "text/html" && html == "":
			html = string(b)
		case ct == "" && plain == "":
			plain = string(b)
		}
	}

	if plain != "" {
		msg.Body = strings.TrimSpace(plain)
	} else {
		msg.Body = StripHTML(html)
	}
	return msg, nil
}

// StripHTML turns an HTML body into whitespace-collapsed text.
func StripHTML(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Address extracts the bare address from a header value such as
// "Jane <jane@example.com>". Unparseable values are returned trimmed.
func Address(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addrs, err := gomail.ParseAddressList(raw)
	if err != nil || len(addrs) == 0 {
		return raw
	}
	return addrs[0].Address
}

// Compose renders a single-part text/plain message ready for SMTP or the
// Gmail raw API.
func Compose(from, to, subject, body string, now time.Time) ([]byte, error) {
	var h gomail.Header
	h.SetDate(now)
	if from != "" {
		h.SetAddressList("From", []*gomail.Address{{Address: from}})
	}
	h.SetAddressList("To", []*gomail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}
