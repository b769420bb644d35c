package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	assert.Equal(t, "PlanComplete", PlanComplete.String())
	assert.Equal(t, "FileCompleted", FileCompleted.String())
	assert.Equal(t, "CleanupWarning", CleanupWarning.String())
	assert.Equal(t, "Unknown", Type(0).String())
	assert.Equal(t, "Unknown", Type(99).String())
}

func TestEmitNilChannel(t *testing.T) {
	// Must not panic or block.
	Emit(nil, Event{Type: FileCompleted})
}

func TestEmitSetsTimestamp(t *testing.T) {
	ch := make(chan Event, 1)
	Emit(ch, Event{Type: FileCompleted, Path: "a.txt"})

	ev := <-ch
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "a.txt", ev.Path)
}

func TestEmitDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	Emit(ch, Event{Type: FileStarted})
	// Second emit must not block.
	Emit(ch, Event{Type: FileCompleted})

	ev := <-ch
	assert.Equal(t, FileStarted, ev.Type)
}
