package workflow

import (
	"sync"
	"time"

	"vidqueue/internal/queue"
)

// EventType names a queue notification.
type EventType string

const (
	EventProjectAdded         EventType = "project-added"
	EventProjectStatusChanged EventType = "project-status-changed"
	EventFileProgress         EventType = "file-progress"
	EventFileResult           EventType = "file-result"
	EventQueueModeChanged     EventType = "queue-mode-changed"
	EventQueueChanged         EventType = "queue-changed"
	EventPersistenceError     EventType = "persistence-error"
)

// Event is a point-in-time notification for observers. Fields not relevant to
// the event type are left zero; FileIndex is -1 when no file is involved.
type Event struct {
	Type            EventType
	Time            time.Time
	ProjectID       string
	FileIndex       int
	Status          queue.Status
	Mode            queue.Mode
	Fraction        float64
	Determinate     bool
	ProjectProgress float64
	Elapsed         time.Duration
	ETA             time.Duration
	Result          *queue.FileResult
	Project         *queue.Project
	Err             string
}

// eventBus fans events out to subscribers without ever blocking the
// publisher. Each subscriber has its own backlog drained by a pump goroutine.
// Only file-progress events are shed when a subscriber falls behind; every
// other event is kept, and the drop count is recorded so callers can tell.
type eventBus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]*subscriber
	dropped uint64
	closed  bool
}

type subscriber struct {
	out   chan Event
	limit int
	wake  chan struct{}
	stop  chan struct{}
	drain chan struct{}

	mu      sync.Mutex
	backlog []Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]*subscriber)}
}

func (b *eventBus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscriber{
		out:   make(chan Event),
		limit: buffer,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		drain: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.pump()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.stop)
		})
	}
}

func (b *eventBus) publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if !sub.offer(evt) {
			b.dropped++
		}
	}
}

func (b *eventBus) droppedCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// close stops accepting events. Subscribers still receive their backlog
// before their channel closes.
func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.drain)
	}
}

// offer queues evt and reports whether it was kept.
func (s *subscriber) offer(evt Event) bool {
	s.mu.Lock()
	if evt.Type == EventFileProgress && len(s.backlog) >= s.limit {
		s.mu.Unlock()
		return false
	}
	s.backlog = append(s.backlog, evt)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) == 0 {
		return Event{}, false
	}
	return s.backlog[0], true
}

func (s *subscriber) pop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog[0] = Event{}
	s.backlog = s.backlog[1:]
}

func (s *subscriber) pump() {
	defer close(s.out)
	draining := false
	for {
		evt, ok := s.next()
		if !ok {
			if draining {
				return
			}
			select {
			case <-s.wake:
			case <-s.drain:
				draining = true
			case <-s.stop:
				return
			}
			continue
		}
		select {
		case s.out <- evt:
			s.pop()
		case <-s.stop:
			return
		}
	}
}
