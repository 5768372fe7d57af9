package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipeoflow/engine/pkg/scheduler"
)

func TestHub_DeliversToMatchingSubscriberOnly(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s1", ExecutionIDFilter{ExecutionID: "exec-a"})
	other := h.Subscribe("s2", ExecutionIDFilter{ExecutionID: "exec-b"})

	h.Emit(scheduler.Event{Type: scheduler.EventNodeStarted, ExecutionID: "exec-a"})

	select {
	case e := <-sub.Events():
		assert.Equal(t, "exec-a", e.ExecutionID)
	default:
		t.Fatal("expected matching subscriber to receive event")
	}

	select {
	case <-other.Events():
		t.Fatal("non-matching subscriber should not receive event")
	default:
	}
}

func TestHub_DropsOldestNonCriticalOnFullBuffer(t *testing.T) {
	h := NewHub(nil)
	h.bufferSize = 2
	sub := h.Subscribe("s1", nil)

	h.Emit(scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n1"})
	h.Emit(scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n2"})
	h.Emit(scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n3"}) // buffer full, dropped

	first := <-sub.Events()
	assert.Equal(t, "n1", string(first.NodeID))
	second := <-sub.Events()
	assert.Equal(t, "n2", string(second.NodeID))
	select {
	case extra := <-sub.Events():
		t.Fatalf("expected no third event, got %v", extra)
	default:
	}
}

func TestHub_NeverDropsTerminalEvent(t *testing.T) {
	h := NewHub(nil)
	h.bufferSize = 1
	sub := h.Subscribe("s1", nil)

	h.Emit(scheduler.Event{Type: scheduler.EventNodeStarted, NodeID: "n1"})
	h.Emit(scheduler.Event{Type: scheduler.EventNodeCompleted, NodeID: "n2"}) // terminal, must evict n1 to fit

	got := <-sub.Events()
	assert.Equal(t, scheduler.EventNodeCompleted, got.Type, "terminal event must survive even when buffer was full")

	select {
	case <-sub.Events():
		t.Fatal("only the terminal event should remain in the buffer")
	default:
	}
}

func TestCompoundFilter_ANDsSubFilters(t *testing.T) {
	f := NewCompoundFilter(
		ExecutionIDFilter{ExecutionID: "exec-a"},
		NewEventTypeFilter(scheduler.EventNodeCompleted),
	)
	assert.True(t, f.Matches(scheduler.Event{ExecutionID: "exec-a", Type: scheduler.EventNodeCompleted}))
	assert.False(t, f.Matches(scheduler.Event{ExecutionID: "exec-a", Type: scheduler.EventNodeStarted}))
	assert.False(t, f.Matches(scheduler.Event{ExecutionID: "exec-b", Type: scheduler.EventNodeCompleted}))
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s1", nil)
	h.Unsubscribe("s1")
	assert.Equal(t, 0, h.SubscriberCount())

	_, ok := <-sub.Events()
	require.False(t, ok, "channel should be closed after unsubscribe")
}
