// Package store holds the single normalized JobState entry per job that
// every view of that job reads from.
package store

import (
	"sync"

	"github.com/sumire/jobconsole/internal/domain"
)

// PanelKind names one independently loaded panel of the detail view.
type PanelKind int

const (
	PanelExecutions PanelKind = iota
	PanelSchedules
	PanelConfig
)

func (k PanelKind) String() string {
	switch k {
	case PanelExecutions:
		return "executions"
	case PanelSchedules:
		return "schedules"
	case PanelConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Tab is the selected tab of the detail view.
type Tab string

const (
	TabExecutions Tab = "executions"
	TabSchedules  Tab = "schedules"
	TabConfig     Tab = "config"
)

// Panel is the load state of one panel. Err replaces the panel content when set.
type Panel struct {
	Loading bool
	Loaded  bool
	Err     string
}

// LogsSurface is the read-only text surface used for logs, build logs and
// their load errors.
type LogsSurface struct {
	Open    bool
	Loading bool
	Title   string
	Text    string
	Failed  bool
}

// View is the per-job UI state that refreshes must leave untouched.
type View struct {
	Executions         Panel
	Schedules          Panel
	Config             Panel
	Logs               LogsSurface
	Tab                Tab
	ScheduleEditorOpen bool
	EditingScheduleID  string
}

// Entry is everything the console knows about one job.
type Entry struct {
	State     domain.JobState
	Schedules []domain.Schedule
	Config    domain.JobConfig
	View      View

	// optimisticSeen is set once a refresh has failed to confirm the
	// optimistic status. The next refresh then replaces it regardless.
	optimisticSeen bool
}

func (e *Entry) clone() Entry {
	out := *e
	out.State.Executions = append([]domain.Execution(nil), e.State.Executions...)
	out.Schedules = append([]domain.Schedule(nil), e.Schedules...)
	if e.Config != nil {
		out.Config = make(domain.JobConfig, len(e.Config))
		for k, v := range e.Config {
			out.Config[k] = v
		}
	}
	return out
}

// Listener is called with a snapshot of an entry after every change.
type Listener func(jobID string, e Entry)

// Store is the keyed JobState container. It is safe for concurrent use;
// listeners run outside the lock.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	order     []string
	listeners map[int]Listener
	nextID    int
}

// New creates a new empty Store.
func New() *Store {
	return &Store{
		entries:   make(map[string]*Entry),
		listeners: make(map[int]Listener),
	}
}

// Get returns a snapshot of a job's entry.
func (s *Store) Get(jobID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[jobID]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// State returns the JobState of a job.
func (s *Store) State(jobID string) (domain.JobState, bool) {
	e, ok := s.Get(jobID)
	return e.State, ok
}

// List returns snapshots of every entry in insertion order.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].clone())
	}
	return out
}

// UpsertJob stores job metadata, keeping executions and view state.
func (s *Store) UpsertJob(job domain.Job) {
	s.update(job.JobID, func(e *Entry) {
		e.State.Job = job
	})
}

// SetExecutions replaces a job's execution list, sorted newest first.
// An optimistic status is cleared once the list confirms it, or on the
// second refresh after it was set. Nothing else in the entry changes.
func (s *Store) SetExecutions(jobID string, executions []domain.Execution) {
	sorted := append([]domain.Execution(nil), executions...)
	domain.SortExecutions(sorted)

	s.update(jobID, func(e *Entry) {
		e.State.Executions = sorted
		e.View.Executions = Panel{Loaded: true}

		if e.State.Optimistic == domain.ExecutionStatusNone {
			return
		}
		if confirms(sorted, e.State.Optimistic) || e.optimisticSeen {
			e.State.Optimistic = domain.ExecutionStatusNone
			e.optimisticSeen = false
			return
		}
		e.optimisticSeen = true
	})
}

// confirms reports whether the backend list agrees with an optimistic
// status. Start is only allowed with no active execution, so any active
// execution after a start is the new one; a stop is confirmed once nothing
// is active.
func confirms(executions []domain.Execution, optimistic domain.ExecutionStatus) bool {
	active := false
	for _, e := range executions {
		if e.Status.Active() {
			active = true
			break
		}
	}
	return active == optimistic.Active()
}

// SetOptimistic records the status an action expects until a refresh
// confirms it.
func (s *Store) SetOptimistic(jobID string, status domain.ExecutionStatus) {
	s.update(jobID, func(e *Entry) {
		e.State.Optimistic = status
		e.optimisticSeen = false
	})
}

// ResetDetail discards what a closed detail view loaded: schedules, config,
// all executions but the newest and every bit of view state. The job and the
// status its list row shows are kept.
func (s *Store) ResetDetail(jobID string) {
	s.update(jobID, func(e *Entry) {
		if latest, ok := e.State.Latest(); ok {
			e.State.Executions = []domain.Execution{latest}
		}
		e.Schedules = nil
		e.Config = nil
		e.View = View{Tab: TabExecutions}
	})
}

// SetSchedules replaces a job's schedules.
func (s *Store) SetSchedules(jobID string, schedules []domain.Schedule) {
	list := append([]domain.Schedule(nil), schedules...)
	s.update(jobID, func(e *Entry) {
		e.Schedules = list
		e.View.Schedules = Panel{Loaded: true}
	})
}

// SetConfig stores a job's configuration document.
func (s *Store) SetConfig(jobID string, cfg domain.JobConfig) {
	s.update(jobID, func(e *Entry) {
		e.Config = cfg
		e.View.Config = Panel{Loaded: true}
	})
}

// SetLoading toggles the spinner of one panel.
func (s *Store) SetLoading(jobID string, kind PanelKind, loading bool) {
	s.update(jobID, func(e *Entry) {
		p := e.View.panel(kind)
		p.Loading = loading
		if loading {
			p.Err = ""
		}
	})
}

// SetPanelError shows an error in place of one panel's content.
func (s *Store) SetPanelError(jobID string, kind PanelKind, msg string) {
	s.update(jobID, func(e *Entry) {
		p := e.View.panel(kind)
		p.Loading = false
		p.Err = msg
	})
}

// OpenLogs opens the logs surface in its loading state.
func (s *Store) OpenLogs(jobID, title string) {
	s.update(jobID, func(e *Entry) {
		e.View.Logs = LogsSurface{Open: true, Loading: true, Title: title}
	})
}

// SetLogs fills the logs surface. failed marks the text as an error message.
func (s *Store) SetLogs(jobID, text string, failed bool) {
	s.update(jobID, func(e *Entry) {
		e.View.Logs.Loading = false
		e.View.Logs.Text = text
		e.View.Logs.Failed = failed
	})
}

// CloseLogs closes the logs surface.
func (s *Store) CloseLogs(jobID string) {
	s.update(jobID, func(e *Entry) {
		e.View.Logs = LogsSurface{}
	})
}

// UpdateView applies fn to a job's view state, e.g. to switch tabs or
// open the schedule editor.
func (s *Store) UpdateView(jobID string, fn func(v *View)) {
	s.update(jobID, func(e *Entry) {
		fn(&e.View)
	})
}

// Subscribe registers a listener and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
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

func (v *View) panel(kind PanelKind) *Panel {
	switch kind {
	case PanelSchedules:
		return &v.Schedules
	case PanelConfig:
		return &v.Config
	default:
		return &v.Executions
	}
}

func (s *Store) update(jobID string, fn func(e *Entry)) {
	s.mu.Lock()
	e, ok := s.entries[jobID]
	if !ok {
		e = &Entry{
			State: domain.JobState{Job: domain.Job{JobID: jobID}},
			View:  View{Tab: TabExecutions},
		}
		s.entries[jobID] = e
		s.order = append(s.order, jobID)
	}
	fn(e)
	snapshot := e.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(jobID, snapshot)
	}
}
