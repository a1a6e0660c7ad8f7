package model

import "time"

// Embedding is a persisted long-term memory entry: the remembered text and
// its vector representation. ID is assigned by storage. Vector length must
// be constant per deployment; one embedding model only.
type Embedding struct {
	ID        int64
	Text      string
	Vector    []float32
	CreatedAt time.Time
}

// ScoredEmbedding pairs a stored embedding with its similarity score
// against a query vector.
type ScoredEmbedding struct {
	Embedding *Embedding
	Score     float32
}

// BufferedMemoryItem is a memory candidate waiting in the buffer for batch
// classification. Value semantics over both fields.
type BufferedMemoryItem struct {
	Text   string
	Vector []float32
}
