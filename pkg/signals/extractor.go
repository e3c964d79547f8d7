package signals

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxClassifyChars bounds the text sent to the remote sentiment classifier.
const MaxClassifyChars = 1000

// SentimentClassifier is the remote collaborator that labels text.
type SentimentClassifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// Extractor computes triage signals for raw email text.
type Extractor struct {
	classifier      SentimentClassifier
	urgencyKeywords []string
	supportKeywords []string
	timeout         time.Duration
	logger          *zap.Logger
}

type Option func(*Extractor)

func WithUrgencyKeywords(keywords []string) Option {
	return func(e *Extractor) {
		if len(keywords) > 0 {
			e.urgencyKeywords = lowerAll(keywords)
		}
	}
}

func WithSupportKeywords(keywords []string) Option {
	return func(e *Extractor) {
		if len(keywords) > 0 {
			e.supportKeywords = lowerAll(keywords)
		}
	}
}

func WithClassifyTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor builds an Extractor. classifier may be nil, in which case
// sentiment is always neutral.
func NewExtractor(classifier SentimentClassifier, opts ...Option) *Extractor {
	e := &Extractor{
		classifier:      classifier,
		urgencyKeywords: []string{"immediately", "critical", "urgent", "asap", "cannot access", "broken", "down"},
		supportKeywords: []string{"support", "query", "request", "help", "issue", "problem", "assistance"},
		timeout:         15 * time.Second,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs every signal. The local signals never depend on the remote call.
func (e *Extractor) Analyze(ctx context.Context, subject, body string) Analysis {
	score := e.PriorityScore(subject, body)
	return Analysis{
		Sentiment:     e.Sentiment(ctx, body),
		Priority:      priorityFromScore(score),
		PriorityScore: score,
		Category:      Categorize(subject, body),
		Info:          Extract(body),
	}
}

// Sentiment asks the remote classifier for a label. Errors and unknown labels
// resolve to neutral.
func (e *Extractor) Sentiment(ctx context.Context, text string) Sentiment {
	if e.classifier == nil {
		return SentimentNeutral
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	label, err := e.classifier.Classify(ctx, truncateRunes(text, MaxClassifyChars), SentimentLabels)
	if err != nil {
		e.logger.Warn("sentiment classification failed, using neutral", zap.Error(err))
		return SentimentNeutral
	}

	sentiment := Sentiment(strings.ToLower(strings.TrimSpace(label)))
	if !sentiment.Valid() {
		e.logger.Debug("classifier returned unknown label", zap.String("label", label))
		return SentimentNeutral
	}
	return sentiment
}

// IsSupportEmail reports whether subject or body mentions a support keyword.
func (e *Extractor) IsSupportEmail(subject, body string) bool {
	text := strings.ToLower(subject + " " + body)
	for _, keyword := range e.supportKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
