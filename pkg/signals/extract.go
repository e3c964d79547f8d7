package signals

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	requirementPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)I need (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)Please (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)Can you (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)I want (.+?)(?:\.|$)`),
	}

	positiveWords = []string{"happy", "satisfied", "great", "excellent", "love", "amazing"}
	negativeWords = []string{"frustrated", "angry", "disappointed", "terrible", "hate", "awful"}
)

// Extract pulls contact details, request phrases and sentiment indicator
// tags out of body. Fields without a match are left empty.
func Extract(body string) ExtractedInfo {
	info := ExtractedInfo{
		Requirements:  []string{},
		SentimentTags: []string{},
	}

	if phone := phonePattern.FindString(body); phone != "" {
		info.Contact.Phone = &phone
	}
	if email := emailPattern.FindString(body); email != "" {
		info.Contact.AltEmail = &email
	}

	for _, pattern := range requirementPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			info.Requirements = append(info.Requirements, match[1])
		}
	}

	lower := strings.ToLower(body)
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			info.SentimentTags = append(info.SentimentTags, "positive: "+word)
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			info.SentimentTags = append(info.SentimentTags, "negative: "+word)
		}
	}

	return info
}
