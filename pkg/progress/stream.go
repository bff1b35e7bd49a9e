package progress

import "sync"

// Stream delivers events to a single consumer in issuance order without
// blocking the producer. Events are queued and handed to deliver from one
// background goroutine. After deliver fails, later events are dropped.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	closed  bool
	ended   bool
	err     error
	deliver func(Event) error
	done    chan struct{}
}

func NewStream(deliver func(Event) error) *Stream {
	s := &Stream{deliver: deliver, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Notify queues a progress event.
func (s *Stream) Notify(u Update) {
	s.Emit(ProgressEvent(u))
}

// Emit queues e. Nothing is queued after a terminal event or Close.
func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.ended {
		return
	}
	if e.Terminal() {
		s.ended = true
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

// Close waits until every queued event has been delivered and returns the
// first delivery error.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		failed := s.err != nil
		s.mu.Unlock()

		if failed {
			continue
		}
		if err := s.deliver(e); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}
}
