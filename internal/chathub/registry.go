package chathub

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry owns the process-wide presence state: every live connection
// handle per user, plus first/last activity times. It is constructed once
// at startup and injected wherever presence is needed; there is no global.
//
// All operations are in-memory and non-blocking. Presence is intentionally
// volatile: after a restart nobody is online until they reconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]Client // userID -> connID -> handle
	seen  map[string]*activity

	log zerolog.Logger
}

type activity struct {
	firstConnected time.Time
	lastActive     time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string]map[string]Client),
		seen:  make(map[string]*activity),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection handle for the user, creating the presence
// entry on the first one. Returns the resulting device count.
func (r *Registry) Register(c Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	handles, ok := r.conns[c.UserID()]
	if !ok {
		handles = make(map[string]Client)
		r.conns[c.UserID()] = handles
		r.seen[c.UserID()] = &activity{firstConnected: now, lastActive: now}
	}
	handles[c.ConnID()] = c
	r.seen[c.UserID()].lastActive = now

	r.log.Debug().
		Str("user_id", c.UserID()).
		Str("conn_id", c.ConnID()).
		Int("devices", len(handles)).
		Msg("connection registered")
	return len(handles)
}

// Deregister removes one connection handle. When the last handle goes, the
// whole presence entry is torn down and true is returned so the caller can
// run the offline transition (room teardown, presence broadcasts).
func (r *Registry) Deregister(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.conns[c.UserID()]
	if !ok {
		return false
	}
	if _, ok := handles[c.ConnID()]; !ok {
		return false
	}
	delete(handles, c.ConnID())
	if len(handles) > 0 {
		return false
	}
	delete(r.conns, c.UserID())
	delete(r.seen, c.UserID())
	r.log.Debug().Str("user_id", c.UserID()).Msg("last connection gone, user offline")
	return true
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ActiveConnections returns a snapshot of the user's live handles. The
// slice is safe to range over without holding any registry lock, which is
// what lets broadcast fan-out happen outside the lock.
func (r *Registry) ActiveConnections(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.conns[userID]
	if len(handles) == 0 {
		return nil
	}
	out := make([]Client, 0, len(handles))
	for _, c := range handles {
		out = append(out, c)
	}
	return out
}

// Touch updates the user's last-activity time.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.seen[userID]; ok {
		a.lastActive = time.Now()
	}
}

// LastSeen returns the user's last-activity time while online.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.seen[userID]
	if !ok {
		return time.Time{}, false
	}
	return a.lastActive, true
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
