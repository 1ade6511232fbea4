package crawl

import "strings"

// ScoreKeywords computes the deterministic relevance score for a record:
// five points per case-insensitive keyword occurrence across title and
// description, clamped to 100. No keywords means score zero.
func ScoreKeywords(title, description string, keywords []string) int {
	if len(keywords) == 0 {
		return 0
	}
	blob := strings.ToLower(title + " " + description)
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		score += strings.Count(blob, kw)
	}
	score *= 5
	if score > 100 {
		return 100
	}
	return score
}
