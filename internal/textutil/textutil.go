// Package textutil holds the tokenization helpers shared by the embedder,
// summarizer and console.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// WordPattern matches letter runs, allowing inner apostrophes.
	WordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	// SentencePattern matches text up to and including terminal punctuation.
	SentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether the lowercase token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Words returns all lowercase word tokens in text, stopwords included.
func Words(text string) []string {
	return WordPattern.FindAllString(strings.ToLower(text), -1)
}

// Terms returns lowercase word tokens with stopwords removed.
func Terms(text string) []string {
	raw := Words(text)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TokenSet returns the distinct word tokens of s.
func TokenSet(s string) map[string]struct{} {
	tokens := Words(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Sentences splits text into trimmed sentences. Text without terminal
// punctuation is returned as a single sentence.
func Sentences(text string) []string {
	found := SentencePattern.FindAllString(text, -1)
	if len(found) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}
	for i := range found {
		found[i] = strings.TrimSpace(found[i])
	}
	return found
}

// Preview returns at most limit runes of text with line breaks collapsed to
// spaces, and whether the text was cut.
func Preview(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}
	truncated := false
	if utf8.RuneCountInString(text) > limit {
		text = string([]rune(text)[:limit])
		truncated = true
	}
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return text, truncated
}
