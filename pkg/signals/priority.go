package signals

import (
	"regexp"
	"strings"
)

// UrgentThreshold is the minimum combined score for an urgent email.
const UrgentThreshold = 2

var (
	// Each pattern contributes every match, not just presence.
	urgencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(immediately|asap|urgent|critical)\b`),
		regexp.MustCompile(`\b(cannot access|broken|down|not working)\b`),
		regexp.MustCompile(`\b(emergency|help needed|stuck)\b`),
	}

	emotionalWords = []string{"frustrated", "angry", "desperate", "helpless", "urgent"}
)

// PriorityScore sums keyword presence, pattern occurrences and emotional
// word presence over the lower-cased body and subject.
func (e *Extractor) PriorityScore(subject, body string) int {
	text := strings.ToLower(body + " " + subject)

	score := 0
	for _, keyword := range e.urgencyKeywords {
		if strings.Contains(text, keyword) {
			score++
		}
	}
	for _, pattern := range urgencyPatterns {
		score += len(pattern.FindAllStringIndex(text, -1))
	}
	for _, word := range emotionalWords {
		if strings.Contains(text, word) {
			score++
		}
	}
	return score
}

func (e *Extractor) Priority(subject, body string) Priority {
	return priorityFromScore(e.PriorityScore(subject, body))
}

func priorityFromScore(score int) Priority {
	if score >= UrgentThreshold {
		return PriorityUrgent
	}
	return PriorityNotUrgent
}
