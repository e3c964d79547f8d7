package fuzzy

import (
	"strings"
)

// Distance is the Levenshtein edit distance between a and b after
// normalization, counted in runes.
func Distance(a, b string) int {
	r1 := []rune(normalize(a))
	r2 := []rune(normalize(b))
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// Threshold is the typo tolerance used for a query of the given length.
func Threshold(query string) int {
	n := len([]rune(query))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match reports whether query occurs in text, prefixes one of its words, or
// is within threshold edits of one of its words.
func Match(query, text string, threshold int) bool {
	query = normalize(query)
	text = normalize(text)
	if query == "" {
		return true
	}
	if strings.Contains(text, query) {
		return true
	}
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) || Distance(query, word) <= threshold {
			return true
		}
	}
	return false
}

// MatchEmail checks subject, sender and the first 500 characters of body.
func MatchEmail(query, subject, sender, body string) bool {
	threshold := Threshold(query)
	if Match(query, subject, threshold) || Match(query, sender, threshold) {
		return true
	}
	return Match(query, snippet(body, 500), threshold)
}

// EmailScore ranks an email against a search query. Subject hits weigh most,
// then sender, then body.
func EmailScore(query, subject, sender, body string) float64 {
	query = normalize(query)
	if query == "" {
		return 0
	}
	score := fieldScore(query, subject, 100, 50)
	score += fieldScore(query, sender, 60, 30)
	score += fieldScore(query, snippet(body, 500), 20, 10)
	return score
}

// TextScore ranks free text against a query word by word. It is used when
// no embedding backend is available.
func TextScore(query, text string) float64 {
	text = normalize(text)
	score := 0.0
	for _, q := range strings.Fields(normalize(query)) {
		if len([]rune(q)) < 3 {
			continue
		}
		score += fieldScore(q, text, 10, 5)
	}
	return score
}

func fieldScore(query, field string, exact, fuzzy float64) float64 {
	field = normalize(field)
	if field == "" {
		return 0
	}
	if strings.Contains(field, query) {
		if containsWord(field, query) {
			return exact * 1.5
		}
		return exact
	}

	best := 0.0
	for _, word := range strings.Fields(field) {
		s := 0.0
		if strings.HasPrefix(word, query) {
			s = fuzzy * 0.8
		}
		if dist := Distance(query, word); dist <= Threshold(query) {
			s = max(s, fuzzy-float64(dist)*fuzzy/4)
		}
		best = max(best, s)
	}
	return best
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if strings.Trim(word, ".,;:!?()\"'") == query {
			return true
		}
	}
	return false
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
