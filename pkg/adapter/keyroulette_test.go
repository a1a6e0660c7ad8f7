package adapter_test

import (
	"testing"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestKeyRouletteSingleKey(t *testing.T) {
	r := adapter.NewKeyRoulette()
	gt.Equal(t, r.Next("sk-abc"), "sk-abc")
}

func TestKeyRouletteEmpty(t *testing.T) {
	r := adapter.NewKeyRoulette()
	gt.Equal(t, r.Next(""), "")
	gt.Equal(t, r.Next(" , ,\n"), "")
}

func TestKeyRoulettePool(t *testing.T) {
	r := adapter.NewKeyRoulette()
	pool := map[string]bool{
		"sk-one":   true,
		"sk-two":   true,
		"sk-three": true,
	}

	// Mixed separators and stray whitespace, picks must come from the
	// pool and never be empty.
	raw := "sk-one, sk-two\nsk-three,\n"
	for range 50 {
		key := r.Next(raw)
		gt.True(t, pool[key])
	}
}
