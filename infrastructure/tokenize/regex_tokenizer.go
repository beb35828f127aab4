// Package tokenize provides the tokenizer adapter consumed by the content
// scorers. It turns raw text into deterministic token sequences.
package tokenize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-matcher/internal/ports"
)

var _ ports.Tokenizer = (*RegexTokenizer)(nil)

// Supported tokenization modes.
const (
	// ModeWords emits every non-stopword word as its own token.
	ModeWords = "words"

	// ModeChunks emits maximal runs of adjacent non-stopword words joined by
	// a single space. Stopwords and punctuation break a run, which
	// approximates noun-phrase chunking without a part-of-speech tagger.
	ModeChunks = "chunks"
)

// RegexTokenizer splits Unicode text on letter runs, folds case and removes
// stopwords. It holds no mutable state and is safe for concurrent use.
type RegexTokenizer struct {
	pattern   *regexp.Regexp
	breaker   *regexp.Regexp
	stopwords map[string]struct{}
	minLen    int
}

// Option configures a RegexTokenizer.
type Option func(*RegexTokenizer)

// WithStopwords replaces the default stopword list.
func WithStopwords(words []string) Option {
	return func(t *RegexTokenizer) {
		t.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			t.stopwords[w] = struct{}{}
		}
	}
}

// WithMinLength drops words shorter than n runes.
func WithMinLength(n int) Option {
	return func(t *RegexTokenizer) { t.minLen = n }
}

// NewRegexTokenizer creates a tokenizer with the default English stopwords.
func NewRegexTokenizer(opts ...Option) *RegexTokenizer {
	t := &RegexTokenizer{
		pattern:   regexp.MustCompile(`\p{L}[\p{L}\p{N}]*(?:['’-]\p{L}+)*`),
		breaker:   regexp.MustCompile(`[.,;:!?()\[\]{}"]`),
		stopwords: defaultStopwords(),
		minLen:    1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize returns the tokens of text for the given mode. Unknown modes
// behave like ModeWords. Empty or stopword-only text yields nil.
func (t *RegexTokenizer) Tokenize(text, mode string) []string {
	// A Caser is stateful, so each call gets its own.
	folded := cases.Fold().String(text)
	if mode != ModeChunks {
		return t.words(folded)
	}

	var out []string
	// Punctuation ends a phrase even when no stopword sits between words.
	for _, segment := range t.breaker.Split(folded, -1) {
		var run []string
		for _, w := range t.pattern.FindAllString(segment, -1) {
			if !t.keep(w) {
				if len(run) > 0 {
					out = append(out, strings.Join(run, " "))
					run = run[:0]
				}
				continue
			}
			run = append(run, w)
		}
		if len(run) > 0 {
			out = append(out, strings.Join(run, " "))
		}
	}
	return out
}

func (t *RegexTokenizer) words(folded string) []string {
	raw := t.pattern.FindAllString(folded, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, w := range raw {
		if t.keep(w) {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (t *RegexTokenizer) keep(w string) bool {
	if _, stop := t.stopwords[w]; stop {
		return false
	}
	return len([]rune(w)) >= t.minLen
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into",
		"about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "should", "now", "we", "our", "us", "which", "who",
		"whom", "what", "when", "where", "how", "not", "no", "nor", "also", "each", "both", "any", "all",
		"more", "most", "other", "some", "only", "has", "have", "had", "do", "does", "did", "there", "their",
		"they", "them", "while", "here", "via", "using", "use", "used", "show", "propose", "paper",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
