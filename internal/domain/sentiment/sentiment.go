// Package sentiment tags free-text feedback with a coarse polarity label.
package sentiment

import "strings"

// Label is the tagger output.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

var (
	positiveWords = []string{"great", "awesome", "amazing", "good", "love"}
	negativeWords = []string{"bad", "worst", "terrible", "poor"}
)

// Tag classifies text. Matching is a case-insensitive substring test and the
// positive list is checked first, so "good but bad" is positive.
func Tag(text string) Label {
	if strings.TrimSpace(text) == "" {
		return Neutral
	}
	lower := strings.ToLower(text)
	if containsAny(lower, positiveWords) {
		return Positive
	}
	if containsAny(lower, negativeWords) {
		return Negative
	}
	return Neutral
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Mode returns the most frequent label in labels, ties going to the label that
// appears first. Empty strings are ignored; with nothing left the result is Neutral.
func Mode(labels []string) string {
	counts := make(map[string]int, 3)
	order := make([]string, 0, 3)
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := counts[l]; !ok {
			order = append(order, l)
		}
		counts[l]++
	}
	best, bestCount := string(Neutral), 0
	for _, l := range order {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}
