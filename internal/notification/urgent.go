package notification

import (
	"context"
	"fmt"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/pkg/fcm"
)

// TopicSender publishes to an FCM topic. *fcm.Client implements it.
type TopicSender interface {
	SendToTopic(ctx context.Context, topic string, data fcm.NotificationData) (string, error)
}

// UrgentAlerter pushes a notification for each urgent email to one topic.
type UrgentAlerter struct {
	sender TopicSender
	topic  string
}

func NewUrgentAlerter(sender TopicSender, topic string) *UrgentAlerter {
	return &UrgentAlerter{sender: sender, topic: topic}
}

func (a *UrgentAlerter) NotifyUrgent(ctx context.Context, email *emaildomain.Email) error {
	subject := email.Subject
	if r := []rune(subject); len(r) > 100 {
		subject = string(r[:97]) + "..."
	}
	if subject == "" {
		subject = "(no subject)"
	}

	_, err := a.sender.SendToTopic(ctx, a.topic, fcm.NotificationData{
		Title: fmt.Sprintf("Urgent email from %s", email.SenderEmail),
		Body:  subject,
		Data: map[string]string{
			"type":      "urgent_email",
			"email_id":  email.ID,
			"category":  string(email.Category),
			"sentiment": string(email.Sentiment),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send urgent alert for %s: %w", email.ID, err)
	}
	return nil
}
