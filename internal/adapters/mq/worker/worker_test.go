package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/rollcall/internal/adapters/mq/queue"
	worker "github.com/okian/rollcall/internal/adapters/mq/worker"
	model "github.com/okian/rollcall/internal/domain/model"
	logging "github.com/okian/rollcall/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

type mockQueue struct {
	frames chan queue.Frame
	once   sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{frames: make(chan queue.Frame, 128)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Frame { return mq.frames }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.frames) })
	return nil
}

type recorder struct {
	mu        sync.Mutex
	processed map[string]int
	failing   map[string]error
	delay     time.Duration
}

func newRecorder() *recorder {
	return &recorder{processed: map[string]int{}, failing: map[string]error{}}
}

func (r *recorder) ProcessFrame(ctx context.Context, f queue.Frame) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failing[f.ID]; ok {
		return err
	}
	r.processed[f.ID]++
	return nil
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[id]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.processed {
		n += c
	}
	return n
}

func frame(id string) model.Frame {
	return model.Frame{ID: id, CourseID: "CS101", Image: []byte{1}}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		rec := newRecorder()
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a frame is queued", func() {
			q.frames <- frame("f1")

			convey.Convey("Then it is processed once", func() {
				convey.So(waitFor(func() bool { return rec.count("f1") == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When processing fails", func() {
			rec.failing["bad"] = errors.New("detector down")
			q.frames <- frame("bad")
			q.frames <- frame("good")

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return rec.count("good") == 1 }), convey.ShouldBeTrue)
				convey.So(rec.count("bad"), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker with a short frame timeout", t, func() {
		q := newMockQueue()
		rec := newRecorder()
		rec.delay = time.Second
		w := worker.NewInMemoryWorker(q, rec, worker.WithFrameTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.frames <- frame("slow")
		_ = q.Close()

		convey.Convey("Then the slow frame is abandoned and the worker exits on close", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer shutdownCancel()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(rec.count("slow"), convey.ShouldEqual, 0)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		rec := newRecorder()
		pool := worker.NewPool(4, q, rec)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When frames arrive concurrently", func() {
			var wg sync.WaitGroup
			for p := 0; p < 5; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < 20; j++ {
						for q.Enqueue(ctx, frame(fmt.Sprintf("f-%d-%d", p, j))) != nil {
							time.Sleep(time.Millisecond)
						}
					}
				}(p)
			}
			wg.Wait()

			convey.Convey("Then shutdown drains every frame exactly once", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(rec.total(), convey.ShouldEqual, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool that cannot drain in time", t, func() {
		q := newMockQueue()
		rec := newRecorder()
		rec.delay = 200 * time.Millisecond
		pool := worker.NewPool(1, q, rec, worker.WithFrameTimeout(0))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		for i := 0; i < 10; i++ {
			q.frames <- frame(fmt.Sprintf("f%d", i))
		}

		convey.Convey("Then shutdown reports the deadline", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})

	convey.Convey("A zero count falls back to the CPU count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), worker.ProcessorFunc(func(context.Context, queue.Frame) error { return nil }))
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
