package scorers

import "github.com/ahrav/go-matcher/internal/domain"

// Dictionary assigns a stable integer ID to every distinct token, in order
// of first appearance. IDs are never reassigned or reused, so the size only
// grows while documents are added.
type Dictionary struct {
	ids    map[string]int
	tokens []string
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{ids: make(map[string]int)}
}

// Add registers every unseen token of the sequence.
func (d *Dictionary) Add(tokens []string) {
	for _, tok := range tokens {
		if _, ok := d.ids[tok]; ok {
			continue
		}
		d.ids[tok] = len(d.tokens)
		d.tokens = append(d.tokens, tok)
	}
}

// ID returns the token's ID and whether it is known.
func (d *Dictionary) ID(token string) (int, bool) {
	id, ok := d.ids[token]
	return id, ok
}

// Len returns the number of distinct tokens.
func (d *Dictionary) Len() int { return len(d.tokens) }

// Bag converts a token sequence to token-ID counts. Tokens unknown to the
// dictionary are ignored.
func (d *Dictionary) Bag(tokens []string) domain.TokenBag {
	bag := domain.NewTokenBag()
	for _, tok := range tokens {
		if id, ok := d.ids[tok]; ok {
			bag.Add(id, 1)
		}
	}
	return bag
}
