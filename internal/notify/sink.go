// Package notify shows one transient message at a time.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/jobconsole/internal/domain"
)

const (
	DefaultActionTTL = 10 * time.Second
	DefaultCopyTTL   = 3 * time.Second
)

// Listener receives the displayed notification, or nil once it is dismissed.
type Listener func(n *domain.Notification)

// Sink holds the single displayed notification. A new message replaces the
// current one and restarts the auto-dismiss timer.
type Sink struct {
	actionTTL time.Duration
	copyTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	current   *domain.Notification
	timer     *time.Timer
	listeners map[int]Listener
	nextID    int
}

// Option configures a Sink.
type Option func(*Sink)

// WithTTL overrides the auto-dismiss timeouts.
func WithTTL(action, copied time.Duration) Option {
	return func(s *Sink) {
		if action > 0 {
			s.actionTTL = action
		}
		if copied > 0 {
			s.copyTTL = copied
		}
	}
}

// NewSink creates a new Sink.
func NewSink(opts ...Option) *Sink {
	s := &Sink{
		actionTTL: DefaultActionTTL,
		copyTTL:   DefaultCopyTTL,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Success posts action feedback with severity success.
func (s *Sink) Success(msg string) domain.Notification {
	return s.Post(domain.SeveritySuccess, msg, s.actionTTL)
}

// Info posts action feedback with severity info.
func (s *Sink) Info(msg string) domain.Notification {
	return s.Post(domain.SeverityInfo, msg, s.actionTTL)
}

// Error posts action feedback with severity error.
func (s *Sink) Error(msg string) domain.Notification {
	return s.Post(domain.SeverityError, msg, s.actionTTL)
}

// Copied posts clipboard feedback, which dismisses sooner than action feedback.
func (s *Sink) Copied(msg string) domain.Notification {
	return s.Post(domain.SeverityInfo, msg, s.copyTTL)
}

// Post displays a notification, pre-empting the current one.
func (s *Sink) Post(severity domain.Severity, msg string, ttl time.Duration) domain.Notification {
	n := domain.Notification{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   msg,
		TTL:       ttl,
		CreatedAt: s.now(),
	}

	if severity == domain.SeverityError {
		slog.Error("notification", "id", n.ID, "message", msg)
	} else {
		slog.Info("notification", "id", n.ID, "severity", severity, "message", msg)
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = &n
	s.timer = time.AfterFunc(ttl, func() { s.Dismiss(n.ID) })
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	shown := n
	for _, l := range listeners {
		l(&shown)
	}
	return n
}

// Current returns the displayed notification.
func (s *Sink) Current() (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.Notification{}, false
	}
	return *s.current, true
}

// Dismiss hides the notification with the given id. It reports false when
// that notification is no longer displayed.
func (s *Sink) Dismiss(id string) bool {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return false
	}
	s.current = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range listeners {
		l(nil)
	}
	return true
}

// Subscribe registers a listener and returns a function removing it.
func (s *Sink) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Sink) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
