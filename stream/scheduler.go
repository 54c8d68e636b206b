package stream

import (
	"math"
	"sync"
)

// drainDivisor sets the playback pace: a visible drain delivers about a
// thirtieth of the backlog.
const drainDivisor = 30

// State is the playback state of a Scheduler.
type State int

const (
	// StateIdle means the queue is empty.
	StateIdle State = iota
	// StatePlaying means items are queued and drains are throttled.
	StatePlaying
	// StateEager means the host is hidden and each drain empties the queue.
	StateEager
	// StateStopped means the scheduler was cancelled; pushes are dropped.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateEager:
		return "eager"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// DrainCount is the number of items a visible drain delivers for a backlog
// of n: max(1, round(n/30)), or zero for an empty queue.
func DrainCount(n int) int {
	if n <= 0 {
		return 0
	}
	return max(1, int(math.Round(float64(n)/drainDivisor)))
}

// Scheduler queues decoded events and releases them to a callback at a pace
// set by whoever calls Drain, typically once per animation frame. It does
// not schedule anything itself.
//
// Deliveries never overlap and keep push order. The callback must not call
// back into the Scheduler's draining methods.
type Scheduler struct {
	deliver func(Event)

	// deliverMu serializes popping and delivering so batches stay ordered.
	deliverMu sync.Mutex

	mu      sync.Mutex
	queue   []Event
	visible bool
	stopped bool
}

// NewScheduler returns a visible, idle scheduler delivering to deliver.
func NewScheduler(deliver func(Event)) *Scheduler {
	return &Scheduler{deliver: deliver, visible: true}
}

// Push appends events to the queue. Events pushed after Cancel are dropped.
func (s *Scheduler) Push(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.queue = append(s.queue, events...)
}

// Drain delivers one batch: DrainCount(backlog) items while visible, the
// whole backlog while hidden. It returns the number delivered.
func (s *Scheduler) Drain() int {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	n := len(s.queue)
	if s.visible {
		n = DrainCount(n)
	}
	batch := s.take(n)
	s.mu.Unlock()

	return s.run(batch)
}

// Flush delivers everything queued, regardless of visibility.
func (s *Scheduler) Flush() int {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	batch := s.take(len(s.queue))
	s.mu.Unlock()

	return s.run(batch)
}

// Cancel flushes the queue and stops the scheduler. It returns the number of
// items flushed.
func (s *Scheduler) Cancel() int {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	batch := s.take(len(s.queue))
	s.stopped = true
	s.mu.Unlock()

	return s.run(batch)
}

// SetVisible switches between throttled (visible) and eager (hidden)
// draining.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// Visible reports whether drains are throttled.
func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Len returns the number of queued items.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// State returns the current playback state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return StateStopped
	case len(s.queue) == 0:
		return StateIdle
	case !s.visible:
		return StateEager
	}
	return StatePlaying
}

// take removes the first n items. s.mu must be held.
func (s *Scheduler) take(n int) []Event {
	if n <= 0 {
		return nil
	}
	batch := make([]Event, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	if len(s.queue) == 0 {
		s.queue = nil
	}
	return batch
}

func (s *Scheduler) run(batch []Event) int {
	for _, ev := range batch {
		s.deliver(ev)
	}
	return len(batch)
}
