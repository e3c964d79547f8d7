package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"email-assistant/pkg/mail"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	user = "me"
	// Gmail API maximum page size
	maxPageSize = 500
	// concurrent Messages.Get calls
	fetchConcurrency = 10
)

// DefaultSupportQuery narrows the inbox to likely support mail.
const DefaultSupportQuery = "subject:(support OR query OR request OR help)"

// Service is a mail transport backed by the Gmail API.
type Service struct {
	srv    *gmail.Service
	query  string
	logger *zap.Logger
}

var _ mail.Transport = (*Service)(nil)

// NewService authenticates with a long-lived refresh token.
func NewService(ctx context.Context, clientID, clientSecret, refreshToken, query string, logger *zap.Logger) (*Service, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail transport needs client id, client secret and refresh token")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	token := &oauth2.Token{RefreshToken: refreshToken, TokenType: "Bearer", Expiry: time.Now()}
	client := oauth2.NewClient(ctx, config.TokenSource(ctx, token))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return NewServiceWithClient(srv, query, logger), nil
}

// NewServiceWithClient wraps an existing API client.
func NewServiceWithClient(srv *gmail.Service, query string, logger *zap.Logger) *Service {
	if query == "" {
		query = DefaultSupportQuery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{srv: srv, query: query, logger: logger}
}

// Fetch lists messages matching the support query received after since and
// downloads them in raw form. Messages that fail to download are skipped.
func (s *Service) Fetch(ctx context.Context, since time.Time) ([]mail.Message, error) {
	q := strings.TrimSpace(s.query + " after:" + strconv.FormatInt(since.Unix(), 10))

	var ids []string
	pageToken := ""
	for {
		call := s.srv.Users.Messages.List(user).Q(q).MaxResults(maxPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	type result struct {
		msg *mail.Message
		err error
		id  string
	}
	results := make(chan result, len(ids))
	semaphore := make(chan struct{}, fetchConcurrency)

	for _, id := range ids {
		go func(id string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			full, err := s.srv.Users.Messages.Get(user, id).Format("raw").Context(ctx).Do()
			if err != nil {
				results <- result{err: err, id: id}
				return
			}
			msg, err := convertRawMessage(full)
			results <- result{msg: msg, err: err, id: id}
		}(id)
	}

	out := make([]mail.Message, 0, len(ids))
	for range ids {
		r := <-results
		if r.err != nil {
			s.logger.Warn("skipping message", zap.String("gmail_id", r.id), zap.Error(r.err))
			continue
		}
		out = append(out, *r.msg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// parallel fetching returns messages in random order
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})

	s.logger.Info("fetched messages", zap.String("query", q), zap.Int("count", len(out)))
	return out, nil
}

// Send delivers a plain-text message from the authenticated account.
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	raw, err := mail.Compose("", to, subject, body, time.Now())
	if err != nil {
		return err
	}

	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := s.srv.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to send message: %w", err)
	}

	s.logger.Info("sent email", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Watch registers the inbox for push notifications on a Pub/Sub topic and
// returns the mailbox history id at registration time.
func (s *Service) Watch(ctx context.Context, topicName string) (uint64, error) {
	// only one push client is allowed per mailbox
	_ = s.srv.Users.Stop(user).Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := s.srv.Users.Watch(user, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}

	s.logger.Info("watch started",
		zap.String("topic", topicName),
		zap.Int64("expiration", resp.Expiration),
		zap.Uint64("history_id", resp.HistoryId),
	)
	return resp.HistoryId, nil
}

// Stop cancels push notifications for the mailbox.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.srv.Users.Stop(user).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}

func convertRawMessage(m *gmail.Message) (*mail.Message, error) {
	data, err := base64.URLEncoding.DecodeString(m.Raw)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(m.Raw)
		if err != nil {
			return nil, fmt.Errorf("invalid raw encoding: %w", err)
		}
	}

	msg, err := mail.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if msg.MessageID == "" {
		msg.MessageID = m.Id
	}
	if msg.ReceivedAt.IsZero() && m.InternalDate > 0 {
		msg.ReceivedAt = time.UnixMilli(m.InternalDate).UTC()
	}
	return msg, nil
}
