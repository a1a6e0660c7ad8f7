package memory_test

import (
	"fmt"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/usecase/memory"
	"github.com/m-mizutani/gt"
)

func TestBufferAutoFlushAtCapacity(t *testing.T) {
	var batches [][]model.BufferedMemoryItem
	buf := memory.NewBuffer(func(items []model.BufferedMemoryItem) {
		batches = append(batches, items)
	})

	for i := range 4 {
		buf.Add(model.BufferedMemoryItem{Text: fmt.Sprintf("item-%d", i)})
	}
	gt.A(t, batches).Length(0)
	gt.Equal(t, buf.Size(), 4)

	buf.Add(model.BufferedMemoryItem{Text: "item-4"})
	gt.A(t, batches).Length(1)
	gt.A(t, batches[0]).Length(5)
	gt.Equal(t, buf.Size(), 0)
}

func TestBufferManualFlush(t *testing.T) {
	var batches [][]model.BufferedMemoryItem
	buf := memory.NewBuffer(func(items []model.BufferedMemoryItem) {
		batches = append(batches, items)
	})

	buf.Add(model.BufferedMemoryItem{Text: "a"})
	buf.Flush()
	gt.A(t, batches).Length(1)
	gt.A(t, batches[0]).Length(1)

	// flushing an empty buffer is a no-op
	buf.Flush()
	gt.A(t, batches).Length(1)
}

func TestBufferKeepsRepeatedItems(t *testing.T) {
	buf := memory.NewBuffer(nil)
	buf.Add(model.BufferedMemoryItem{Text: "记住我喜欢猫"})
	buf.Add(model.BufferedMemoryItem{Text: "记住我喜欢猫"})
	buf.Add(model.BufferedMemoryItem{Text: "other"})
	gt.Equal(t, buf.Size(), 3)
}

func TestBufferClear(t *testing.T) {
	flushed := false
	buf := memory.NewBuffer(func([]model.BufferedMemoryItem) { flushed = true })

	buf.Add(model.BufferedMemoryItem{Text: "a"})
	buf.Clear()
	gt.Equal(t, buf.Size(), 0)

	buf.Flush()
	gt.False(t, flushed)
}

func TestBufferCallbackMayReenter(t *testing.T) {
	var got []string
	var buf *memory.Buffer
	buf = memory.NewBuffer(func(items []model.BufferedMemoryItem) {
		for _, item := range items {
			got = append(got, item.Text)
		}
		// callback runs outside the lock, so re-entry must not deadlock
		gt.Equal(t, buf.Size(), 0)
	})

	for i := range 5 {
		buf.Add(model.BufferedMemoryItem{Text: fmt.Sprintf("m%d", i)})
	}
	gt.A(t, got).Length(5)
}
