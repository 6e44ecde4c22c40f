package queue

import (
	"context"
	"testing"
	"time"

	"github.com/okian/creatorboard/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	ack := model.NewMessage(model.MessageAck, "thanks", "m1")
	if !q.Enqueue(ctx, ack) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != ack.ID || got.ReplyTo != "m1" {
		t.Errorf("expected %v, got %v", ack, got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, model.NewMessage(model.MessageLeaderboard, "board", "")) {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	if q.Enqueue(ctx, model.NewMessage(model.MessageLeaderboard, "board", "")) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, model.NewMessage(model.MessageAck, "a", "m1"))
	q.Enqueue(ctx, model.NewMessage(model.MessageAck, "b", "m2"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if q.Enqueue(ctx, model.NewMessage(model.MessageAck, "c", "m3")) {
		t.Error("expected enqueue after close to fail")
	}

	var texts []string
	for m := range q.Dequeue(ctx) {
		texts = append(texts, m.Text)
	}
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Errorf("expected queued messages in order, got %v", texts)
	}
}

func TestInMemoryQueue_DequeueStopsOnCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no message")
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue channel not closed after cancel")
	}
}

func TestInMemoryQueue_EnqueueCancelled(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if q.Enqueue(ctx, model.NewMessage(model.MessageAck, "late", "m1")) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
