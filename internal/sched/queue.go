package sched

// Poster runs a function on the engine's single logical goroutine. Timer
// callbacks never preempt handler bodies; every Timer's fire callback is
// wrapped in a Poster so it never touches engine state directly from the
// timer's own goroutine.
type Poster interface {
	Post(fn func())
}

// Inline runs fn immediately on the calling goroutine. This is correct
// whenever the caller itself already is the single logical goroutine —
// which is true for every unit test in this module, since tests drive the
// engine synchronously and use ManualTimer rather than a real clock.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

// Queue serializes posted work onto one worker goroutine, for production
// use where RealTimer callbacks arrive on arbitrary goroutines.
type Queue struct {
	work chan func()
	done chan struct{}
}

// NewQueue starts the worker goroutine. Close must be called to stop it.
func NewQueue() *Queue {
	q := &Queue{work: make(chan func(), 256), done: make(chan struct{})}
	go q.run()
	return q
}

func (q *Queue) run() {
	for {
		select {
		case fn := <-q.work:
			fn()
		case <-q.done:
			return
		}
	}
}

// Post enqueues fn to run on the worker goroutine, in submission order.
func (q *Queue) Post(fn func()) {
	select {
	case q.work <- fn:
	case <-q.done:
	}
}

// Close stops the worker goroutine. Pending work is dropped.
func (q *Queue) Close() { close(q.done) }
