package chat

import "iter"

// defaultChunkSize is the number of runes emitted per downstream chunk.
// Upstream SSE deltas arrive in arbitrary sizes; re-chunking them keeps
// rendering cadence steady regardless of how a provider slices its output.
const defaultChunkSize = 32

// Rebuffer accumulates upstream text deltas and re-emits them in chunks
// of size runes. A trailing remainder shorter than size is flushed when
// the upstream ends. Errors pass through after the pending remainder is
// flushed, and terminate the sequence.
func Rebuffer(upstream iter.Seq2[string, error], size int) iter.Seq2[string, error] {
	if size <= 0 {
		size = defaultChunkSize
	}

	return func(yield func(string, error) bool) {
		var pending []rune

		for delta, err := range upstream {
			if err != nil {
				if len(pending) > 0 {
					if !yield(string(pending), nil) {
						return
					}
				}
				yield("", err)
				return
			}
			if delta == "" {
				continue
			}

			pending = append(pending, []rune(delta)...)
			for len(pending) >= size {
				if !yield(string(pending[:size]), nil) {
					return
				}
				pending = pending[size:]
			}
		}

		if len(pending) > 0 {
			yield(string(pending), nil)
		}
	}
}
