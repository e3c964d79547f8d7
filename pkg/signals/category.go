package signals

import "strings"

type categoryRule struct {
	category Category
	keywords []string
}

// Declaration order is the tie-break order.
var categoryRules = []categoryRule{
	{CategorySupport, []string{"support", "help", "assistance", "issue", "problem"}},
	{CategoryQuery, []string{"question", "inquiry", "ask", "wondering"}},
	{CategoryRequest, []string{"request", "need", "want", "require"}},
	{CategoryComplaint, []string{"complaint", "dissatisfied", "unhappy", "disappointed"}},
	{CategoryFeedback, []string{"feedback", "suggestion", "improvement", "review"}},
}

// Categorize returns the category with the most keyword hits. Ties go to the
// earlier category; no hits at all yields CategoryGeneral.
func Categorize(subject, body string) Category {
	text := strings.ToLower(subject + " " + body)

	best, bestScore := CategoryGeneral, 0
	for _, rule := range categoryRules {
		score := 0
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = rule.category, score
		}
	}
	return best
}

// CategoryLabels lists every category in tie-break order, general last.
func CategoryLabels() []string {
	labels := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		labels = append(labels, string(rule.category))
	}
	return append(labels, string(CategoryGeneral))
}
