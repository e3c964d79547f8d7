package signals

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentLabels is the closed label set the remote classifier must answer with.
var SentimentLabels = []string{
	string(SentimentPositive),
	string(SentimentNegative),
	string(SentimentNeutral),
}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

type Priority string

const (
	PriorityUrgent    Priority = "urgent"
	PriorityNotUrgent Priority = "not_urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityUrgent || p == PriorityNotUrgent
}

// Rank orders priorities for the review queue; lower ranks come first.
func (p Priority) Rank() int {
	if p == PriorityUrgent {
		return 0
	}
	return 1
}

type Category string

const (
	CategorySupport   Category = "support"
	CategoryQuery     Category = "query"
	CategoryRequest   Category = "request"
	CategoryComplaint Category = "complaint"
	CategoryFeedback  Category = "feedback"
	CategoryGeneral   Category = "general"
)

func (c Category) Valid() bool {
	if c == CategoryGeneral {
		return true
	}
	for _, rule := range categoryRules {
		if rule.category == c {
			return true
		}
	}
	return false
}

// Contact holds optional contact details found in the body.
type Contact struct {
	Phone    *string `json:"phone,omitempty"`
	AltEmail *string `json:"alternate_email,omitempty"`
}

// ExtractedInfo is the structured fact set pulled out of an email body.
type ExtractedInfo struct {
	Contact       Contact  `json:"contact_details"`
	Requirements  []string `json:"requirements"`
	SentimentTags []string `json:"sentiment_indicators"`
}

// Analysis bundles every signal computed for one email.
type Analysis struct {
	Sentiment     Sentiment     `json:"sentiment"`
	Priority      Priority      `json:"priority"`
	PriorityScore int           `json:"priority_score"`
	Category      Category      `json:"category"`
	Info          ExtractedInfo `json:"extracted_info"`
}
