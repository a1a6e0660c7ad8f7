package memory

import (
	"sync"

	"github.com/m-mizutani/ermine/pkg/model"
)

// bufferCapacity is how many candidate items accumulate before an
// automatic flush. Small enough that a classifier batch stays cheap.
const bufferCapacity = 5

// Buffer collects memory candidates and hands them to the flush
// callback in batches. It is safe for concurrent use; the callback
// always runs outside the lock so it may call back into the buffer.
type Buffer struct {
	mu      sync.Mutex
	items   []model.BufferedMemoryItem
	cap     int
	onFlush func(items []model.BufferedMemoryItem)
}

func NewBuffer(onFlush func(items []model.BufferedMemoryItem)) *Buffer {
	return &Buffer{
		cap:     bufferCapacity,
		onFlush: onFlush,
	}
}

// Add appends item and flushes automatically when the buffer is full.
func (b *Buffer) Add(item model.BufferedMemoryItem) {
	b.mu.Lock()
	b.items = append(b.items, item)

	var batch []model.BufferedMemoryItem
	if len(b.items) >= b.cap {
		batch = b.items
		b.items = nil
	}
	b.mu.Unlock()

	if batch != nil && b.onFlush != nil {
		b.onFlush(batch)
	}
}

// Flush hands any pending items to the callback immediately.
func (b *Buffer) Flush() {
	b.mu.Lock()
	batch := b.items
	b.items = nil
	b.mu.Unlock()

	if len(batch) > 0 && b.onFlush != nil {
		b.onFlush(batch)
	}
}

// Clear drops pending items without invoking the callback.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
