// Package job implements the background job manager: a job runs on its
// own goroutine, reports progress through a shared channel the editor
// drains non-blockingly each tick, and can be asked — cooperatively — to
// stop early. Grounded on original_source/src/job_manager/mod.rs
// (JobMessage/JobState/JobManager/Job), with per-job cancellation
// completed here: the original's cancel_job is an explicit placeholder
// ("TODO: Implement per-job cancellation via AtomicBool or similar"),
// which spec.md §4.7/§5 requires, so this is re-expressed with a
// context.Context per job instead of the channel-drop-on-shutdown the
// original falls back to. The manager's id-keyed bookkeeping follows
// pkg/session/manager.go's callback-registry-by-id style.
package job

import (
	"context"
	"errors"
	"sync"
)

// MessageKind tags what a Message carries.
type MessageKind int

const (
	Started MessageKind = iota
	Progress
	Custom
	Finished
	Errored
	Cancelled
)

// Message is one event sent from a job back to the manager's channel.
// Messages from a single job arrive in send order (single sender per
// job); ordering across jobs is unspecified, per spec.md §4.7.
type Message struct {
	JobID   int
	Kind    MessageKind
	Percent int
	Text    string
	Payload any
}

func (k MessageKind) terminal() bool {
	return k == Finished || k == Errored || k == Cancelled
}

// Sender is the handle a running job uses to report progress. Its sends
// go to the manager's buffered channel (256 messages), so a slow UI
// thread stalls a job goroutine only once that many messages are waiting.
type Sender struct {
	id int
	ch chan<- Message
}

// Progress reports a percent-complete update with a status message.
func (s Sender) Progress(percent int, text string) {
	s.ch <- Message{JobID: s.id, Kind: Progress, Percent: percent, Text: text}
}

// Custom delivers an opaque, job-specific payload (spec.md §4.7's
// "type-erased payload whose concrete type is known to the caller that
// spawned the job").
func (s Sender) Custom(payload any) {
	s.ch <- Message{JobID: s.id, Kind: Custom, Payload: payload}
}

// RunFunc is a job's body. It MUST periodically check ctx.Done() during
// long work and return context.Cause(ctx) promptly once cancelled.
// Returning nil means success (Finished); returning context.Canceled (or
// a wrapped form of it) means Cancelled; any other error means Errored.
type RunFunc func(ctx context.Context, id int, sender Sender) error

// State is a job's current lifecycle state.
type State int

const (
	StateRunning State = iota
	StateFinished
	StateFailed
	StateCancelled
)

type handle struct {
	cancel context.CancelFunc
	state  State
	done   chan struct{}
}

// Manager spawns and tracks background jobs.
type Manager struct {
	mu   sync.Mutex
	jobs map[int]*handle
	next int
	ch   chan Message
}

// New creates a job manager with a generously buffered message channel.
func New() *Manager {
	return &Manager{jobs: make(map[int]*handle), next: 1, ch: make(chan Message, 256)}
}

// Spawn starts run on a new goroutine, assigning it a monotonically
// increasing id, and returns that id immediately.
func (m *Manager) Spawn(run RunFunc) int {
	m.mu.Lock()
	id := m.next
	m.next++
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, state: StateRunning, done: make(chan struct{})}
	m.jobs[id] = h
	m.mu.Unlock()

	go func() {
		defer close(h.done)
		m.ch <- Message{JobID: id, Kind: Started}
		err := run(ctx, id, Sender{id: id, ch: m.ch})
		switch {
		case errors.Is(err, context.Canceled):
			m.ch <- Message{JobID: id, Kind: Cancelled}
		case err != nil:
			m.ch <- Message{JobID: id, Kind: Errored, Text: err.Error()}
		default:
			m.ch <- Message{JobID: id, Kind: Finished}
		}
	}()

	return id
}

// Cancel sets id's cancellation token. This is advisory: it does not
// forcibly stop the goroutine, which must observe ctx.Done() itself.
func (m *Manager) Cancel(id int) {
	m.mu.Lock()
	h, ok := m.jobs[id]
	m.mu.Unlock()
	if ok {
		h.cancel()
	}
}

// State reports id's last-known lifecycle state.
func (m *Manager) State(id int) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.jobs[id]
	if !ok {
		return 0, false
	}
	return h.state, true
}

func (m *Manager) updateState(msg Message) {
	if !msg.Kind.terminal() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.jobs[msg.JobID]
	if !ok {
		return
	}
	switch msg.Kind {
	case Finished:
		h.state = StateFinished
	case Errored:
		h.state = StateFailed
	case Cancelled:
		h.state = StateCancelled
	}
}

// Drain non-blockingly collects every message currently queued, updating
// job states as it goes. Call this once per event-loop tick.
func (m *Manager) Drain() []Message {
	var out []Message
	for {
		select {
		case msg := <-m.ch:
			m.updateState(msg)
			out = append(out, msg)
		default:
			return out
		}
	}
}

// Reap removes and returns the ids of jobs that reached a terminal state
// and whose goroutine has fully exited.
func (m *Manager) Reap() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reaped []int
	for id, h := range m.jobs {
		if h.state == StateRunning {
			continue
		}
		select {
		case <-h.done:
			reaped = append(reaped, id)
		default:
		}
	}
	for _, id := range reaped {
		delete(m.jobs, id)
	}
	return reaped
}
