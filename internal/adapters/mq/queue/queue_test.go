package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
)

func frame(id string) model.Frame {
	return model.Frame{ID: id, CourseID: "CS101", Image: []byte{1}, ReceivedAt: time.Now()}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, frame("f1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "f1" {
		t.Errorf("expected f1, got %v", got.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"f1", "f2"} {
		if err := q.Enqueue(ctx, frame(id)); err != nil {
			t.Fatalf("expected enqueue of %s to succeed, got %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, frame("f3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, frame("f1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const producers, perProducer = 10, 100
	q := NewInMemoryQueue(WithCapacity(64))
	ctx := context.Background()

	var consumed sync.WaitGroup
	seen := make(chan string, producers*perProducer)
	for i := 0; i < 4; i++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for f := range q.Dequeue(ctx) {
				seen <- f.ID
			}
		}()
	}

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for j := 0; j < perProducer; j++ {
				for q.Enqueue(ctx, frame(fmt.Sprintf("f%d_%d", p, j))) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	produced.Wait()
	_ = q.Close()
	consumed.Wait()
	close(seen)

	unique := make(map[string]struct{})
	for id := range seen {
		unique[id] = struct{}{}
	}
	if len(unique) != producers*perProducer {
		t.Errorf("expected %d distinct frames, got %d", producers*perProducer, len(unique))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	_ = q.Enqueue(ctx, frame("f1"))
	_ = q.Enqueue(ctx, frame("f2"))
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, frame("f3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected queued frames to drain, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, f.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
