// Package notify implements the editor's notification center: transient
// popups with a time-to-live by severity. Grounded on
// original_source/src/notification/mod.rs (Notification /
// NotificationType / NotificationManager).
package notify

import (
	"sync"
	"time"

	"github.com/vtedit/core/pkg/apperr"
)

// Kind mirrors original_source's NotificationType.
type Kind int

const (
	Info Kind = iota
	Warning
	Error
	Success
)

// KindFromSeverity maps an apperr.Severity onto a Kind exactly as the
// original's `From<ErrorSeverity>` impl does: Critical collapses to Error,
// there being no separate "critical" toast — critical errors bypass the
// notification center entirely and propagate to the outer loop.
func KindFromSeverity(s apperr.Severity) Kind {
	switch s {
	case apperr.Info:
		return Info
	case apperr.Warning:
		return Warning
	default:
		return Error
	}
}

// Default time-to-live by kind, per spec.md §7.
const (
	InfoTTL    = 5 * time.Second
	WarningTTL = 8 * time.Second
	ErrorTTL   = 10 * time.Second
	SuccessTTL = 3 * time.Second
)

func defaultTTL(k Kind) time.Duration {
	switch k {
	case Info:
		return InfoTTL
	case Warning:
		return WarningTTL
	case Error:
		return ErrorTTL
	case Success:
		return SuccessTTL
	}
	return InfoTTL
}

// Notification is one active popup.
type Notification struct {
	ID        uint64
	Kind      Kind
	Message   string
	Timestamp time.Time
	TTL       time.Duration // zero means "persists until dismissed"
}

func (n Notification) expired(now time.Time) bool {
	if n.TTL == 0 {
		return false
	}
	return now.Sub(n.Timestamp) > n.TTL
}

// Center manages active notifications. Generation increments on any
// change to the active set, letting a renderer skip repainting the
// notification layer when nothing changed.
type Center struct {
	mu            sync.Mutex
	notifications []Notification
	nextID        uint64
	generation    uint64
	nowFn         func() time.Time
}

// New creates an empty notification center.
func New() *Center {
	return &Center{nowFn: time.Now}
}

// NewWithClock creates a notification center using now in place of
// time.Now, for deterministic TTL tests.
func NewWithClock(now func() time.Time) *Center {
	return &Center{nowFn: now}
}

// Add pushes a notification with an explicit TTL (zero means no expiry)
// and returns its id.
func (c *Center) Add(kind Kind, message string, ttl time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.notifications = append(c.notifications, Notification{
		ID:        id,
		Kind:      kind,
		Message:   message,
		Timestamp: c.nowFn(),
		TTL:       ttl,
	})
	c.generation++
	return id
}

// Push adds a notification using kind's default TTL, per spec.md §7 —
// this never blocks the event loop, unlike the original's job-message
// channel.
func (c *Center) Push(kind Kind, message string) uint64 {
	return c.Add(kind, message, defaultTTL(kind))
}

// Info, Warn, Err, and Success are convenience wrappers matching the
// original's info/warn/error/success helpers.
func (c *Center) Info(message string) uint64    { return c.Push(Info, message) }
func (c *Center) Warn(message string) uint64    { return c.Push(Warning, message) }
func (c *Center) Err(message string) uint64     { return c.Push(Error, message) }
func (c *Center) Success(message string) uint64 { return c.Push(Success, message) }

// IsEmpty reports whether no notification is currently held.
func (c *Center) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notifications) == 0
}

// Active returns a copy of the notifications currently held, in
// insertion order. An entry whose TTL has elapsed stays in the result
// until the next Tick prunes it.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// Generation returns the current change-detection counter.
func (c *Center) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Tick prunes every notification whose TTL has elapsed as of now. Call
// this once per event-loop tick.
func (c *Center) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.notifications[:0]
	for _, n := range c.notifications {
		if !n.expired(now) {
			kept = append(kept, n)
		}
	}
	if len(kept) != len(c.notifications) {
		c.generation++
	}
	c.notifications = kept
}

// Remove dismisses the notification with the given id, if active.
func (c *Center) Remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notifications {
		if n.ID == id {
			c.notifications = append(c.notifications[:i], c.notifications[i+1:]...)
			c.generation++
			return
		}
	}
}

// ClearLast dismisses the most recently added notification.
func (c *Center) ClearLast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notifications) == 0 {
		return
	}
	c.notifications = c.notifications[:len(c.notifications)-1]
	c.generation++
}

// ClearAll dismisses every active notification.
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notifications) == 0 {
		return
	}
	c.notifications = nil
	c.generation++
}
