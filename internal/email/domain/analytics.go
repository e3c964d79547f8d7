package domain

import "time"

// DailyAnalytics is a per-day snapshot, recomputed from the email table.
type DailyAnalytics struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	Day               string    `json:"date" gorm:"uniqueIndex;size:10;not null"`
	TotalEmails       int64     `json:"total_emails"`
	UrgentEmails      int64     `json:"urgent_emails"`
	PositiveSentiment int64     `json:"positive_sentiment"`
	NegativeSentiment int64     `json:"negative_sentiment"`
	NeutralSentiment  int64     `json:"neutral_sentiment"`
	EmailsResolved    int64     `json:"emails_resolved"`
	EmailsPending     int64     `json:"emails_pending"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DailyAnalytics) TableName() string {
	return "email_analytics"
}

// DayLayout is the format of DailyAnalytics.Day.
const DayLayout = "2006-01-02"

// DashboardStats summarises one day, including its signal distributions.
type DashboardStats struct {
	Date                  string           `json:"date"`
	TotalEmailsToday      int64            `json:"total_emails_today"`
	UrgentEmails          int64            `json:"urgent_emails"`
	EmailsResolved        int64            `json:"emails_resolved"`
	EmailsPending         int64            `json:"emails_pending"`
	SentimentDistribution map[string]int64 `json:"sentiment_distribution"`
	PriorityDistribution  map[string]int64 `json:"priority_distribution"`
	CategoryDistribution  map[string]int64 `json:"category_distribution"`
}
