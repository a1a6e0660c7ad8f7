package adapter

import (
	"math/rand/v2"
	"strings"
)

// KeyRoulette picks one API key from a multi-key pool so rate-limit
// exposure spreads across all credentials configured for a provider slot.
type KeyRoulette struct{}

// NewKeyRoulette returns a stateless roulette.
func NewKeyRoulette() *KeyRoulette {
	return &KeyRoulette{}
}

// Next splits the raw key field on commas and newlines, trims whitespace,
// drops empty entries and returns one candidate uniformly at random. Empty
// input yields an empty string.
func (r *KeyRoulette) Next(rawKeyField string) string {
	keys := strings.FieldsFunc(rawKeyField, func(c rune) bool {
		return c == ',' || c == '\n'
	})

	candidates := keys[:0]
	for _, k := range keys {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.IntN(len(candidates))]
}
