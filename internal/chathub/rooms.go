package chathub

import (
	"sync"

	"github.com/rs/zerolog"

	"matchpoint/backend/internal/metrics"
	"matchpoint/backend/internal/models"
)

// eventPublisher is the slice of the storage surface rooms need: the
// cross-process fan-out extension point. storage.Storage satisfies it.
type eventPublisher interface {
	PublishEvent(conversationID string, evt models.Event) error
}

// Rooms tracks which users have joined which conversations and performs
// room-scoped broadcast. Membership is volatile; on full disconnect the
// user silently leaves every room.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // conversationID -> userIDs
	joined  map[string]map[string]struct{} // userID -> conversationIDs

	registry  *Registry
	publisher eventPublisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewRooms creates an empty membership tracker delivering through the given
// registry.
func NewRooms(registry *Registry, publisher eventPublisher, m *metrics.Metrics, log zerolog.Logger) *Rooms {
	return &Rooms{
		members:   make(map[string]map[string]struct{}),
		joined:    make(map[string]map[string]struct{}),
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		log:       log.With().Str("component", "rooms").Logger(),
	}
}

// Join adds the user to a conversation room. Idempotent: joining twice is a
// no-op and returns false.
func (r *Rooms) Join(userID, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[conversationID]; !ok {
		r.members[conversationID] = make(map[string]struct{})
	}
	if _, ok := r.members[conversationID][userID]; ok {
		return false
	}
	r.members[conversationID][userID] = struct{}{}

	if _, ok := r.joined[userID]; !ok {
		r.joined[userID] = make(map[string]struct{})
	}
	r.joined[userID][conversationID] = struct{}{}
	return true
}

// Leave removes the user from a conversation room.
func (r *Rooms) Leave(userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(userID, conversationID)
}

// LeaveAll removes the user from every room and returns the rooms left, so
// the caller can broadcast the offline transition to each.
func (r *Rooms) LeaveAll(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.joined[userID]))
	for conversationID := range r.joined[userID] {
		rooms = append(rooms, conversationID)
	}
	for _, conversationID := range rooms {
		r.remove(userID, conversationID)
	}
	return rooms
}

// remove expects r.mu held.
func (r *Rooms) remove(userID, conversationID string) {
	if set, ok := r.members[conversationID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.members, conversationID)
		}
	}
	if set, ok := r.joined[userID]; ok {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(r.joined, userID)
		}
	}
}

// MembersOf returns a snapshot of the room's member IDs.
func (r *Rooms) MembersOf(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	return out
}

// Contains reports whether the user has joined the room.
func (r *Rooms) Contains(userID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[conversationID][userID]
	return ok
}

// Broadcast fans evt out to every online connection of every room member,
// except excludeUserID when non-empty. Membership is snapshotted under the
// read lock; every socket write happens after release, and each send is
// non-blocking, so one slow or dead connection never stalls the rest.
func (r *Rooms) Broadcast(conversationID string, evt models.Event, excludeUserID string) {
	targets := r.MembersOf(conversationID)
	if targets == nil {
		return
	}

	for _, userID := range targets {
		if userID == excludeUserID {
			continue
		}
		for _, client := range r.registry.ActiveConnections(userID) {
			r.deliver(client, evt)
		}
	}
	r.metrics.RecordBroadcast(evt.Name)

	if r.publisher != nil {
		if err := r.publisher.PublishEvent(conversationID, evt); err != nil {
			r.log.Warn().Err(err).
				Str("conversation_id", conversationID).
				Str("event", evt.Name).
				Msg("pubsub publish failed")
		}
	}
}

// deliver performs one bounded, best-effort send. A full send buffer counts
// as a failed delivery: it is logged and skipped, never retried here.
func (r *Rooms) deliver(client Client, evt models.Event) bool {
	select {
	case client.SendChannel() <- evt:
		return true
	default:
		r.metrics.RecordDroppedDelivery()
		r.log.Warn().
			Str("user_id", client.UserID()).
			Str("conn_id", client.ConnID()).
			Str("event", evt.Name).
			Msg("send buffer full, delivery dropped")
		return false
	}
}
