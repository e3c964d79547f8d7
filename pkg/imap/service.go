package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"email-assistant/pkg/mail"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Config holds the mailbox credentials. SMTP defaults to the IMAP host.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Mailbox  string
	SMTPHost string
	SMTPPort int
	// From overrides the envelope sender, which defaults to Username.
	From string
	// TLSConfig is used for the SMTP handshake; nil verifies against the
	// system roots and SMTPHost.
	TLSConfig *tls.Config
}

// Service fetches over IMAP and sends over SMTP.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

var _ mail.Transport = (*Service)(nil)

func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = cfg.Host
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger}
}

func (s *Service) connect(ctx context.Context) (*client.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseSSL {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// Fetch returns every message in the mailbox received since the given time.
// IMAP SINCE has day granularity.
func (s *Service) Fetch(ctx context.Context, since time.Time) ([]mail.Message, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	if len(uids) == 0 {
		return []mail.Message{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	out := make([]mail.Message, 0, len(uids))
	for m := range messages {
		if ctx.Err() != nil {
			continue
		}
		msg, err := s.convert(m, section)
		if err != nil {
			s.logger.Warn("skipping unparseable message", zap.Uint32("uid", m.Uid), zap.Error(err))
			continue
		}
		out = append(out, *msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("fetched messages", zap.String("mailbox", s.cfg.Mailbox), zap.Int("count", len(out)))
	return out, nil
}

func (s *Service) convert(m *imap.Message, section *imap.BodySectionName) (*mail.Message, error) {
	r := m.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("server returned no body")
	}
	msg, err := mail.Parse(r)
	if err != nil {
		return nil, err
	}
	if m.Envelope != nil {
		if msg.MessageID == "" {
			msg.MessageID = m.Envelope.MessageId
		}
		if msg.Subject == "" {
			msg.Subject = m.Envelope.Subject
		}
		if msg.From == "" && len(m.Envelope.From) > 0 {
			msg.From = m.Envelope.From[0].Address()
		}
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = m.InternalDate.UTC()
	}
	return msg, nil
}

// Send delivers a plain-text message over SMTP. Port 465 uses implicit TLS;
// any other port requires STARTTLS and fails if the server does not offer
// it. Without a username no AUTH is sent.
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := mail.Compose(s.cfg.From, to, subject, body, time.Now())
	if err != nil {
		return err
	}

	if err := s.sendSMTP(to, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("sent email", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *Service) sendSMTP(to string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))

	var (
		c   *smtp.Client
		err error
	)
	if s.cfg.SMTPPort == 465 {
		c, err = smtp.DialTLS(addr, s.cfg.TLSConfig)
	} else {
		c, err = smtp.DialStartTLS(addr, s.cfg.TLSConfig)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return err
		}
	}
	if err := c.SendMail(s.cfg.From, []string{to}, bytes.NewReader(raw)); err != nil {
		return err
	}
	return c.Quit()
}
