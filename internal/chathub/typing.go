package chathub

import (
	"sync"
	"time"

	"matchpoint/backend/internal/models"
)

// Broadcaster is the slice of Rooms the typing manager needs.
type Broadcaster interface {
	Broadcast(conversationID string, evt models.Event, excludeUserID string)
}

// TypingManager holds the per-conversation ephemeral "who is typing" state.
// At most one typer is tracked per conversation: a new start replaces the
// previous one, last writer wins. Every entry owns exactly one timer handle
// whose expiry callback is bound to that entry; replacing or removing the
// entry stops the timer, and a callback already in flight finds its entry
// gone and does nothing, so it can never clear a successor.
type TypingManager struct {
	mu      sync.Mutex
	entries map[string]*typingEntry
	quiet   time.Duration

	rooms Broadcaster
}

type typingEntry struct {
	userID    string
	userName  string
	startedAt time.Time
	timer     *time.Timer
}

// NewTypingManager creates a typing manager that auto-stops a typer after
// the quiet window elapses without a restart.
func NewTypingManager(rooms Broadcaster, quiet time.Duration) *TypingManager {
	return &TypingManager{
		entries: make(map[string]*typingEntry),
		quiet:   quiet,
		rooms:   rooms,
	}
}

// Start records the user as the conversation's typer, replacing and
// stopping any previous one, and arms a fresh expiry timer. When the
// replaced typer is a different user, their stop is broadcast before the
// new start.
func (t *TypingManager) Start(userID, userName, conversationID string) {
	t.mu.Lock()
	var stopped *typingEntry
	if prev, ok := t.entries[conversationID]; ok {
		prev.timer.Stop()
		if prev.userID != userID {
			stopped = prev
		}
	}
	entry := &typingEntry{
		userID:    userID,
		userName:  userName,
		startedAt: time.Now(),
	}
	entry.timer = time.AfterFunc(t.quiet, func() { t.expire(conversationID, entry) })
	t.entries[conversationID] = entry
	t.mu.Unlock()

	// Broadcasts happen outside the lock.
	if stopped != nil {
		t.rooms.Broadcast(conversationID, typingEvent(conversationID, stopped, false), stopped.userID)
	}
	t.rooms.Broadcast(conversationID, typingEvent(conversationID, entry, true), userID)
}

// Stop clears the user's typing state and broadcasts the stop. A stop for a
// user who is not the recorded typer is a no-op.
func (t *TypingManager) Stop(userID, conversationID string) {
	t.mu.Lock()
	entry, ok := t.entries[conversationID]
	if !ok || entry.userID != userID {
		t.mu.Unlock()
		return
	}
	entry.timer.Stop()
	delete(t.entries, conversationID)
	t.mu.Unlock()

	t.rooms.Broadcast(conversationID, typingEvent(conversationID, entry, false), userID)
}

// ClearUser stops typing state in every conversation where the user is the
// recorded typer, broadcasting the stop to each. Called on disconnect.
func (t *TypingManager) ClearUser(userID string) {
	t.mu.Lock()
	var cleared []string
	var entries []*typingEntry
	for conversationID, entry := range t.entries {
		if entry.userID == userID {
			entry.timer.Stop()
			delete(t.entries, conversationID)
			cleared = append(cleared, conversationID)
			entries = append(entries, entry)
		}
	}
	t.mu.Unlock()

	for i, conversationID := range cleared {
		t.rooms.Broadcast(conversationID, typingEvent(conversationID, entries[i], false), userID)
	}
}

// Typer returns the recorded typer for a conversation, if any.
func (t *TypingManager) Typer(conversationID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[conversationID]
	if !ok {
		return "", false
	}
	return entry.userID, true
}

// expire is the timer callback: the quiet window elapsed with no restart.
// The callback carries the entry it was armed for and bails unless that
// exact entry is still current, so a timer that fires just as its entry is
// replaced — even by the same user restarting — can never clear the fresh
// entry.
func (t *TypingManager) expire(conversationID string, entry *typingEntry) {
	t.mu.Lock()
	if t.entries[conversationID] != entry {
		t.mu.Unlock()
		return
	}
	delete(t.entries, conversationID)
	t.mu.Unlock()

	t.rooms.Broadcast(conversationID, typingEvent(conversationID, entry, false), entry.userID)
}

func typingEvent(conversationID string, entry *typingEntry, isTyping bool) models.Event {
	return models.Event{
		Name: models.EvTyping,
		Data: models.TypingPayload{
			ConversationID: conversationID,
			UserID:         entry.userID,
			UserName:       entry.userName,
			IsTyping:       isTyping,
		},
	}
}
