// Package expiry implements the ExpiryTaskManager and its task types (spec
// §4.6, §4.7): a single process-wide scheduler that owns every
// entry/region/tombstone timeout in the engine. Callbacks run on timer
// goroutines, not on one shared loop goroutine.
package expiry

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"regioncache/channel"
	"regioncache/errs"
)

var logger = logrus.WithFields(logrus.Fields{"component": "expiry"})

// Task is the on_expire() contract from spec §4.6: returns true when the
// task completed naturally (the manager reaps single-shot tasks and
// rearms periodic ones), false when the callback itself called Reset and
// the manager must not touch the task further this round.
type Task interface {
	OnExpire() bool
}

type scheduledTask struct {
	id        int64
	task      Task
	timer     *time.Timer
	interval  time.Duration
	cancelled bool
}

// Manager is the ExpiryTaskManager: schedule/reset/cancel of typed tasks.
// Each task has its own time.AfterFunc timer, and each callback runs on the
// goroutine that timer starts; there is no single event-loop goroutine, so
// callbacks of different tasks can run concurrently with each other. The
// manager's mutex serializes only its own bookkeeping (the task table and
// the per-task cancelled flag), not the OnExpire callbacks.
type Manager struct {
	mu      sync.Mutex
	tasks   map[int64]*scheduledTask
	nextID  int64
	running bool

	stopCh chan struct{}
}

// NewManager constructs a manager in the not-running state.
func NewManager() *Manager {
	return &Manager{tasks: make(map[int64]*scheduledTask)}
}

// Start transitions the manager to running. Double-start is a state error.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errs.ErrDoubleStart
	}
	m.running = true
	m.stopCh = make(chan struct{})
	return nil
}

// Stop cancels every outstanding task before returning (spec §4.6). Double-
// stop is a state error.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errs.ErrDoubleStop
	}
	m.running = false
	stopCh := m.stopCh
	tasks := make([]*scheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.tasks = make(map[int64]*scheduledTask)
	m.mu.Unlock()

	for _, t := range tasks {
		t.timer.Stop()
	}
	close(stopCh)
	return nil
}

// Count returns the number of tasks currently known to the manager.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

const invalidID int64 = -1

// Schedule arms task to fire after delay; if interval > 0, a successful
// natural expiry rearms it at previous_fire_time + interval (spec §4.6).
// Returns invalidID if the manager is not running.
func (m *Manager) Schedule(task Task, delay, interval time.Duration) int64 {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return invalidID
	}
	m.nextID++
	id := m.nextID
	st := &scheduledTask{id: id, task: task, interval: interval}
	m.tasks[id] = st
	m.mu.Unlock()

	st.timer = time.AfterFunc(delay, func() { m.fire(st) })
	return id
}

func (m *Manager) fire(st *scheduledTask) {
	firedAt := time.Now()
	m.mu.Lock()
	if st.cancelled {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	completed := st.task.OnExpire()

	m.mu.Lock()
	defer m.mu.Unlock()
	if st.cancelled {
		return
	}
	if !completed {
		// The task rescheduled itself from within OnExpire via Reset; the
		// manager must not touch it further this round (spec §4.6).
		return
	}
	if st.interval > 0 {
		st.timer = time.AfterFunc(time.Until(firedAt.Add(st.interval)), func() { m.fire(st) })
		return
	}
	delete(m.tasks, st.id)
}

// Reset cancels any pending fire and re-arms id for now + delay, returning
// the number of pending executions that were canceled (0 means the task
// was firing when Reset was called), or -1 if id is unknown.
func (m *Manager) Reset(id int64, delay time.Duration) int {
	m.mu.Lock()
	st, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return -1
	}
	if st.cancelled {
		m.mu.Unlock()
		return -1
	}
	pending := 0
	if st.timer.Stop() {
		pending = 1
	}
	m.mu.Unlock()

	st.timer = time.AfterFunc(delay, func() { m.fire(st) })
	return pending
}

// Cancel stops id's timer and forgets the task, returning the number of
// pending executions canceled, or -1 if id is unknown. Sets the per-task
// cancelled flag first so a callback already running observes it and exits
// before mutating user state (spec §4.6's cancellation race).
func (m *Manager) Cancel(id int64) int {
	m.mu.Lock()
	st, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return -1
	}
	st.cancelled = true
	delete(m.tasks, id)
	m.mu.Unlock()

	pending := 0
	if st.timer.Stop() {
		pending = 1
	}
	return pending
}

// Done returns a channel closed once Stop() has run, letting long-lived
// background helpers (e.g. the region layer's own goroutines) select on
// manager shutdown alongside their own done channels via channel.Or.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return m.stopCh
}

// WaitAny blocks until either the manager stops or extra closes, using the
// teacher's channel.Or fan-in instead of a hand-rolled select for an
// arbitrary number of signals.
func WaitAny(m *Manager, extra <-chan struct{}) {
	<-channel.Or(m.Done(), extra)
}
