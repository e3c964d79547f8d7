package usecase

import (
	"context"
	"fmt"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/pkg/signals"

	"go.uber.org/zap"
)

// dayBounds returns [00:00, next 00:00) of the calendar day containing t.
func (u *triageUsecase) dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(u.location).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, u.location)
	return start, start.AddDate(0, 0, 1)
}

func (u *triageUsecase) RecomputeAnalytics(ctx context.Context, day time.Time) (*emaildomain.DailyAnalytics, error) {
	start, end := u.dayBounds(day)

	counts, err := u.emailRepo.CountRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}
	counts.Day = start.Format(emaildomain.DayLayout)

	if err := u.analyticsRepo.Upsert(ctx, counts); err != nil {
		return nil, fmt.Errorf("failed to store analytics for %s: %w", counts.Day, err)
	}
	stored, err := u.analyticsRepo.FindByDay(ctx, counts.Day)
	if err != nil || stored == nil {
		return counts, err
	}

	u.logger.Debug("analytics recomputed",
		zap.String("day", stored.Day),
		zap.Int64("total", stored.TotalEmails),
		zap.Int64("urgent", stored.UrgentEmails),
	)
	return stored, nil
}

// DashboardStats counts the given day live rather than reading the stored
// snapshot, so it is never stale.
func (u *triageUsecase) DashboardStats(ctx context.Context, day time.Time) (*emaildomain.DashboardStats, error) {
	start, end := u.dayBounds(day)

	counts, err := u.emailRepo.CountRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count emails: %w", err)
	}

	stats := &emaildomain.DashboardStats{
		Date:             start.Format(emaildomain.DayLayout),
		TotalEmailsToday: counts.TotalEmails,
		UrgentEmails:     counts.UrgentEmails,
		EmailsResolved:   counts.EmailsResolved,
		EmailsPending:    counts.EmailsPending,
	}

	distributions := []struct {
		column string
		labels []string
		dst    *map[string]int64
	}{
		{"sentiment", signals.SentimentLabels, &stats.SentimentDistribution},
		{"priority", []string{string(signals.PriorityUrgent), string(signals.PriorityNotUrgent)}, &stats.PriorityDistribution},
		{"category", signals.CategoryLabels(), &stats.CategoryDistribution},
	}
	for _, d := range distributions {
		counts, err := u.emailRepo.Distribution(ctx, d.column, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s distribution: %w", d.column, err)
		}
		out := make(map[string]int64, len(d.labels))
		for _, label := range d.labels {
			out[label] = counts[label]
		}
		*d.dst = out
	}
	return stats, nil
}

func (u *triageUsecase) ListAnalytics(ctx context.Context, from, to time.Time) ([]*emaildomain.DailyAnalytics, error) {
	fromDay, _ := u.dayBounds(from)
	toDay, _ := u.dayBounds(to)
	snapshots, err := u.analyticsRepo.List(ctx, fromDay.Format(emaildomain.DayLayout), toDay.Format(emaildomain.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics: %w", err)
	}
	if snapshots == nil {
		snapshots = []*emaildomain.DailyAnalytics{}
	}
	return snapshots, nil
}

func (u *triageUsecase) SyncHistory(ctx context.Context, limit int) ([]*emaildomain.SyncRun, error) {
	if u.syncRunRepo == nil {
		return []*emaildomain.SyncRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	runs, err := u.syncRunRepo.Latest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync history: %w", err)
	}
	if runs == nil {
		runs = []*emaildomain.SyncRun{}
	}
	return runs, nil
}
