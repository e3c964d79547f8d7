package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/internal/email/usecase"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on a mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Syncer runs a mailbox sync. usecase.TriageUsecase implements it.
type Syncer interface {
	Sync(ctx context.Context, req usecase.SyncRequest) *usecase.SyncResult
}

// Service listens on the Gmail push subscription and syncs on every change.
type Service struct {
	pubsubClient *pubsub.Client
	syncer       Syncer
	topicName    string
	subName      string
	logger       *zap.Logger

	mu sync.Mutex
	// last historyId seen per mailbox; older or equal ids are redeliveries
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, syncer Syncer, logger *zap.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return NewServiceWithClient(client, topicName, syncer, logger), nil
}

// NewServiceWithClient uses an existing client. The subscription name is the
// topic name with a "-sub" suffix.
func NewServiceWithClient(client *pubsub.Client, topicName string, syncer Syncer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pubsubClient:  client,
		syncer:        syncer,
		topicName:     topicName,
		subName:       topicName + "-sub",
		logger:        logger,
		lastHistoryID: make(map[string]uint64),
	}
}

// Start blocks receiving messages until ctx is done. It creates the
// subscription when the topic exists but the subscription does not.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting push listener", zap.String("topic", s.topicName), zap.String("subscription", s.subName))

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to receive from %s: %w", s.subName, err)
	}
	return nil
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", s.subName, err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic %s: %w", s.topicName, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription %s: %w", s.subName, err)
	}
	s.logger.Info("created subscription", zap.String("subscription", s.subName))
	return sub, nil
}

// handleMessage never fails: malformed and stale notifications are logged and
// acknowledged so they are not redelivered.
func (s *Service) handleMessage(ctx context.Context, data []byte) {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		s.logger.Warn("failed to unmarshal notification", zap.Error(err))
		return
	}
	log := s.logger.With(zap.String("email", notification.EmailAddress), zap.Uint64("history_id", notification.HistoryID))

	if !s.advance(notification) {
		log.Debug("skipping stale notification")
		return
	}

	req := usecase.SyncRequest{Source: emaildomain.SourcePubSub}
	if notification.HistoryID > 0 {
		req.HistoryID = strconv.FormatUint(notification.HistoryID, 10)
	}
	result := s.syncer.Sync(ctx, req)
	switch {
	case result.Duplicate:
		log.Debug("mailbox change already synced")
	case result.Success:
		log.Info("push sync finished", zap.Int("processed", result.Processed))
	default:
		log.Warn("push sync failed", zap.String("message", result.Message))
	}
}

func (s *Service) advance(n GmailNotification) bool {
	if n.HistoryID == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[n.EmailAddress]; ok && n.HistoryID <= last {
		return false
	}
	s.lastHistoryID[n.EmailAddress] = n.HistoryID
	return true
}
