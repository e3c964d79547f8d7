package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/pkg/database"
	"email-assistant/pkg/signals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func newEmail(msgID string, p signals.Priority, s signals.Sentiment, hours int) *emaildomain.Email {
	return &emaildomain.Email{
		MessageID:   msgID,
		SenderEmail: "customer@example.com",
		Subject:     "Subject " + msgID,
		Body:        "Body " + msgID,
		ReceivedAt:  base.Add(time.Duration(hours) * time.Hour),
		Priority:    p,
		Sentiment:   s,
		Category:    signals.CategorySupport,
		IsProcessed: true,
	}
}

func TestEmailRepository_PriorityQueueOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newEmail("u10", signals.PriorityUrgent, signals.SentimentNeutral, 10)))
	require.NoError(t, repo.Create(ctx, newEmail("n1", signals.PriorityNotUrgent, signals.SentimentNeutral, 1)))
	require.NoError(t, repo.Create(ctx, newEmail("u5", signals.PriorityUrgent, signals.SentimentNeutral, 5)))

	answered := newEmail("done", signals.PriorityUrgent, signals.SentimentNeutral, 0)
	answered.IsResponded = true
	require.NoError(t, repo.Create(ctx, answered))

	unprocessed := newEmail("raw", signals.PriorityUrgent, signals.SentimentNeutral, 0)
	unprocessed.IsProcessed = false
	require.NoError(t, repo.Create(ctx, unprocessed))

	queue, err := repo.PriorityQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "u5", queue[0].MessageID)
	assert.Equal(t, "u10", queue[1].MessageID)
	assert.Equal(t, "n1", queue[2].MessageID)
}

func TestEmailRepository_MessageIDIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newEmail("dup", signals.PriorityUrgent, signals.SentimentNeutral, 0)))
	assert.Error(t, repo.Create(ctx, newEmail("dup", signals.PriorityUrgent, signals.SentimentNeutral, 1)))

	got, err := repo.FindByMessageID(ctx, "dup")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, base, got.ReceivedAt.UTC())

	missing, err := repo.FindByMessageID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEmailRepository_ExtractedInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	phone := "555-123-4567"
	e := newEmail("info", signals.PriorityNotUrgent, signals.SentimentPositive, 0)
	e.ExtractedInfo = signals.ExtractedInfo{
		Contact:       signals.Contact{Phone: &phone},
		Requirements:  []string{"a refund"},
		SentimentTags: []string{"positive: great"},
	}
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExtractedInfo.Contact.Phone)
	assert.Equal(t, phone, *got.ExtractedInfo.Contact.Phone)
	assert.Nil(t, got.ExtractedInfo.Contact.AltEmail)
	assert.Equal(t, []string{"a refund"}, got.ExtractedInfo.Requirements)
}

func TestEmailRepository_NestedTransactionRollsBackOnlySavepoint(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	err := repo.Transaction(ctx, func(tx EmailRepository) error {
		require.NoError(t, tx.Transaction(ctx, func(inner EmailRepository) error {
			return inner.Create(ctx, newEmail("kept", signals.PriorityUrgent, signals.SentimentNeutral, 0))
		}))
		innerErr := tx.Transaction(ctx, func(inner EmailRepository) error {
			if err := inner.Create(ctx, newEmail("dropped", signals.PriorityUrgent, signals.SentimentNeutral, 0)); err != nil {
				return err
			}
			return errors.New("boom")
		})
		assert.Error(t, innerErr)
		return nil
	})
	require.NoError(t, err)

	kept, err := repo.FindByMessageID(ctx, "kept")
	require.NoError(t, err)
	assert.NotNil(t, kept)
	dropped, err := repo.FindByMessageID(ctx, "dropped")
	require.NoError(t, err)
	assert.Nil(t, dropped)
}

func TestEmailRepository_OuterRollbackDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	err := repo.Transaction(ctx, func(tx EmailRepository) error {
		require.NoError(t, tx.Create(ctx, newEmail("a", signals.PriorityUrgent, signals.SentimentNeutral, 0)))
		return errors.New("commit refused")
	})
	require.Error(t, err)

	got, err := repo.FindByMessageID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmailRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newEmail("a", signals.PriorityUrgent, signals.SentimentNegative, 1)))
	require.NoError(t, repo.Create(ctx, newEmail("b", signals.PriorityNotUrgent, signals.SentimentPositive, 2)))
	require.NoError(t, repo.Create(ctx, newEmail("c", signals.PriorityUrgent, signals.SentimentPositive, 30)))

	emails, total, err := repo.List(ctx, emaildomain.EmailFilter{Priority: signals.PriorityUrgent})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, emails, 2)
	assert.Equal(t, "c", emails[0].MessageID)

	from, to := base, base.Add(24*time.Hour)
	emails, total, err = repo.List(ctx, emaildomain.EmailFilter{From: &from, To: &to, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, emails, 1)
	assert.Equal(t, "b", emails[0].MessageID)

	responded := false
	_, total, err = repo.List(ctx, emaildomain.EmailFilter{Sentiment: signals.SentimentPositive, IsResponded: &responded})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestEmailRepository_CountsAndDistribution(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	a := newEmail("a", signals.PriorityUrgent, signals.SentimentNegative, 1)
	a.IsResponded = true
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, newEmail("b", signals.PriorityNotUrgent, signals.SentimentPositive, 2)))
	require.NoError(t, repo.Create(ctx, newEmail("c", signals.PriorityUrgent, signals.SentimentNeutral, 3)))
	require.NoError(t, repo.Create(ctx, newEmail("next-day", signals.PriorityUrgent, signals.SentimentNeutral, 25)))

	counts, err := repo.CountRange(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts.TotalEmails)
	assert.EqualValues(t, 2, counts.UrgentEmails)
	assert.EqualValues(t, 1, counts.PositiveSentiment)
	assert.EqualValues(t, 1, counts.NegativeSentiment)
	assert.EqualValues(t, 1, counts.NeutralSentiment)
	assert.EqualValues(t, 1, counts.EmailsResolved)
	assert.EqualValues(t, 2, counts.EmailsPending)

	empty, err := repo.CountRange(ctx, base.Add(-48*time.Hour), base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalEmails)
	assert.Zero(t, empty.UrgentEmails)

	dist, err := repo.Distribution(ctx, "priority", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"urgent": 2, "not_urgent": 1}, dist)

	_, err = repo.Distribution(ctx, "body; DROP TABLE emails", base, base.Add(24*time.Hour))
	assert.Error(t, err)
}

func TestEmailRepository_UpdateFields(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	e := newEmail("a", signals.PriorityUrgent, signals.SentimentNeutral, 0)
	require.NoError(t, repo.Create(ctx, e))
	require.NoError(t, repo.UpdateFields(ctx, e.ID, map[string]interface{}{"is_responded": true, "response_sent": true}))

	got, err := repo.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.IsResponded)
	assert.True(t, got.ResponseSent)

	err = repo.UpdateFields(ctx, "missing", map[string]interface{}{"is_responded": true})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAnalyticsRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalyticsRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &emaildomain.DailyAnalytics{Day: "2024-03-01", TotalEmails: 3}))
	require.NoError(t, repo.Upsert(ctx, &emaildomain.DailyAnalytics{Day: "2024-03-01", TotalEmails: 5, UrgentEmails: 2}))
	require.NoError(t, repo.Upsert(ctx, &emaildomain.DailyAnalytics{Day: "2024-03-02", TotalEmails: 1}))

	got, err := repo.FindByDay(ctx, "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 5, got.TotalEmails)
	assert.EqualValues(t, 2, got.UrgentEmails)

	list, err := repo.List(ctx, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-01", list[0].Day)

	missing, err := repo.FindByDay(ctx, "1999-01-01")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSyncRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRunRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &emaildomain.SyncRun{Source: emaildomain.SourcePubSub, HistoryID: "42", Success: true, StartedAt: base}))
	require.NoError(t, repo.Create(ctx, &emaildomain.SyncRun{Source: emaildomain.SourceCron, Success: false, StartedAt: base.Add(time.Hour)}))

	seen, err := repo.HasHistoryID(ctx, "42")
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = repo.HasHistoryID(ctx, "43")
	require.NoError(t, err)
	assert.False(t, seen)

	runs, err := repo.Latest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, emaildomain.SourceCron, runs[0].Source)
}
