package starboard

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// writer serializes settings and star-post persistence onto one background
// goroutine. Callers update the in-memory caches synchronously and accept
// the small durability window (a crash can lose queued writes).
type writer struct {
	mu     sync.Mutex
	closed bool
	jobs   chan func() error
	wg     sync.WaitGroup
}

func newWriter(queueSize int) *writer {
	w := &writer{jobs: make(chan func() error, queueSize)}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *writer) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		if err := job(); err != nil {
			log.Error().Err(err).Msg("starboard: background write failed")
		}
	}
}

// enqueue submits a write. Blocks when the queue is full rather than
// dropping the write. A write submitted after stop is dropped; late debounce
// callbacks racing shutdown land here instead of on a closed channel.
func (w *writer) enqueue(job func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		log.Debug().Msg("starboard: write after shutdown dropped")
		return
	}
	w.jobs <- job
}

// stop drains the queue and waits for the worker to finish. Idempotent.
func (w *writer) stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
