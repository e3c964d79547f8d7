package fcm

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	got *messaging.Message
	err error
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.got = m
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestSendToTopic(t *testing.T) {
	sender := &fakeSender{}
	c := NewClientWithSender(sender, nil)

	id, err := c.SendToTopic(context.Background(), "urgent-support", NotificationData{
		Title: "Urgent email",
		Body:  "Cannot access account",
		Data:  map[string]string{"email_id": "e1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/p/messages/1", id)

	require.NotNil(t, sender.got)
	assert.Equal(t, "urgent-support", sender.got.Topic)
	assert.Equal(t, "Urgent email", sender.got.Notification.Title)
	assert.Equal(t, "e1", sender.got.Data["email_id"])
	assert.Equal(t, "high", sender.got.Android.Priority)
}

func TestSendToTopic_Error(t *testing.T) {
	boom := errors.New("unavailable")
	c := NewClientWithSender(&fakeSender{err: boom}, nil)

	_, err := c.SendToTopic(context.Background(), "t", NotificationData{Title: "x"})
	assert.ErrorIs(t, err, boom)
}
