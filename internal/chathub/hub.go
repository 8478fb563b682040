package chathub

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"matchpoint/backend/internal/match"
	"matchpoint/backend/internal/metrics"
	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/storage"
	"matchpoint/backend/internal/xerrors"
)

// Hub is the event dispatcher: the engine's public surface. Inbound events
// arrive through HandleEvent on each connection's read pump, so events on
// one connection are processed in arrival order while connections run in
// parallel. The outward API (NotifyUser, NotifyMatch, BroadcastAll,
// IsOnline, OnlineCount) lets non-realtime code push events without
// touching registry internals.
type Hub struct {
	Registry *Registry
	Rooms    *Rooms
	Typing   *TypingManager

	store     storage.Storage
	lifecycle *match.Controller
	limiter   *senderLimiter
	metrics   *metrics.Metrics
	log       zerolog.Logger

	maxMessageLen int
	historySize   int
	now           func() time.Time
}

// Options bundles the dispatcher's tuning knobs.
type Options struct {
	MessagesPerMinute int
	MaxMessageLength  int
	HistoryReloadSize int
}

// NewHub wires the dispatcher over its components.
func NewHub(
	registry *Registry,
	rooms *Rooms,
	typing *TypingManager,
	store storage.Storage,
	lifecycle *match.Controller,
	m *metrics.Metrics,
	log zerolog.Logger,
	opts Options,
) *Hub {
	return &Hub{
		Registry:      registry,
		Rooms:         rooms,
		Typing:        typing,
		store:         store,
		lifecycle:     lifecycle,
		limiter:       newSenderLimiter(opts.MessagesPerMinute, time.Minute),
		metrics:       m,
		log:           log.With().Str("component", "hub").Logger(),
		maxMessageLen: opts.MaxMessageLength,
		historySize:   opts.HistoryReloadSize,
		now:           time.Now,
	}
}

// HandleConnect registers a fresh, already-authenticated connection: the
// user joins the rooms of all their active matches, each room learns they
// are online, and the connection receives the welcome event.
func (h *Hub) HandleConnect(c Client) {
	devices := h.Registry.Register(c)
	h.metrics.OnlineUsers.Set(float64(h.Registry.OnlineCount()))
	lastSeen, ok := h.Registry.LastSeen(c.UserID())
	if !ok {
		lastSeen = h.now()
	}

	matchIDs, err := h.store.ActiveMatchIDsForUser(c.UserID())
	if err != nil {
		h.log.Error().Err(err).Str("user_id", c.UserID()).Msg("active match lookup failed on connect")
	}
	for _, conversationID := range matchIDs {
		first := h.Rooms.Join(c.UserID(), conversationID)
		if first && devices == 1 {
			h.Rooms.Broadcast(conversationID, models.Event{
				Name: models.EvUserOnline,
				Data: models.RoomPresencePayload{
					ConversationID: conversationID,
					UserID:         c.UserID(),
					LastSeen:       lastSeen,
				},
			}, c.UserID())
		}
	}

	h.push(c, models.Event{Name: models.EvWelcome, Data: models.WelcomePayload{
		UserID:      c.UserID(),
		DeviceCount: devices,
		ServerTime:  h.now(),
	}})
	if err := h.store.TouchLastSeen(c.UserID(), h.now()); err != nil {
		h.log.Warn().Err(err).Str("user_id", c.UserID()).Msg("last-seen touch failed")
	}
}

// HandleDisconnect tears one connection down. Typing state owned by the
// user is cleared immediately; room membership and presence fall only when
// the last device goes.
func (h *Hub) HandleDisconnect(c Client) {
	// Snapshot the tracked activity time before deregistration tears the
	// presence entry down.
	lastSeen, tracked := h.Registry.LastSeen(c.UserID())

	lastGone := h.Registry.Deregister(c)
	h.metrics.OnlineUsers.Set(float64(h.Registry.OnlineCount()))
	if !lastGone {
		return
	}
	if !tracked {
		lastSeen = h.now()
	}

	h.Typing.ClearUser(c.UserID())
	h.limiter.Forget(c.UserID())

	for _, conversationID := range h.Rooms.LeaveAll(c.UserID()) {
		h.Rooms.Broadcast(conversationID, models.Event{
			Name: models.EvUserOffline,
			Data: models.RoomPresencePayload{
				ConversationID: conversationID,
				UserID:         c.UserID(),
				LastSeen:       lastSeen,
			},
		}, c.UserID())
	}
	if err := h.store.TouchLastSeen(c.UserID(), lastSeen); err != nil {
		h.log.Warn().Err(err).Str("user_id", c.UserID()).Msg("last-seen touch failed")
	}
}

// HandleEvent validates and routes one inbound event. The caller identity
// always comes from the authenticated connection, never from the payload.
// Panics inside a handler are caught here: the connection gets a generic
// error event and the process keeps running.
func (h *Hub) HandleEvent(c Client, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error().
				Interface("panic", rec).
				Str("user_id", c.UserID()).
				Str("conn_id", c.ConnID()).
				Msg("event handler panicked")
			h.metrics.RecordEvent("unknown", "panic")
			h.pushError(c, "", xerrors.NewPersistence("event handling", nil))
		}
	}()

	h.Registry.Touch(c.UserID())

	var evt models.InboundEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		h.metrics.RecordEvent("unknown", "malformed")
		h.pushError(c, "", xerrors.NewValidation("event", "malformed envelope"))
		return
	}

	var err error
	switch evt.Name {
	case models.EvJoinConversation:
		err = h.handleJoin(c, evt.Payload)
	case models.EvLeaveConversation:
		err = h.handleLeave(c, evt.Payload)
	case models.EvTypingStart:
		err = h.handleTyping(c, evt.Payload, true)
	case models.EvTypingStop:
		err = h.handleTyping(c, evt.Payload, false)
	case models.EvSendMessage:
		err = h.handleSendMessage(c, evt.Payload)
	case models.EvMarkRead:
		err = h.handleMarkRead(c, evt.Payload)
	case models.EvPing:
		h.push(c, models.Event{Name: models.EvPong, Data: models.PongPayload{ServerTime: h.now()}})
	default:
		err = xerrors.NewValidation("event", "unknown event name")
	}

	if err != nil {
		h.metrics.RecordEvent(evt.Name, xerrors.Code(err))
		h.pushError(c, clientTempID(evt), err)
		return
	}
	h.metrics.RecordEvent(evt.Name, "ok")
}

func (h *Hub) handleJoin(c Client, payload json.RawMessage) error {
	ref, err := decodeConversationRef(payload)
	if err != nil {
		return err
	}
	m, err := h.participantMatch(ref.ConversationID, c.UserID())
	if err != nil {
		return err
	}

	joined := h.Rooms.Join(c.UserID(), m.ID)

	history, err := h.store.RecentMessages(m.ID, h.historySize)
	if err != nil {
		h.log.Warn().Err(err).Str("conversation_id", m.ID).Msg("history reload failed")
	}
	views := make([]models.MessageView, 0, len(history))
	for i := range history {
		views = append(views, models.NewMessageView(&history[i]))
	}

	unread, err := h.store.UnreadCount(m.ID, c.UserID())
	if err != nil {
		h.log.Warn().Err(err).Str("conversation_id", m.ID).Msg("unread count lookup failed")
	}

	remaining := m.RemainingTTL(h.now())
	h.push(c, models.Event{Name: models.EvConversationJoined, Data: models.ConversationJoinedPayload{
		ConversationID:  m.ID,
		HasFirstMessage: m.Answered(),
		RemainingTTL:    int64(remaining.Seconds()),
		UrgencyLevel:    models.UrgencyFor(remaining),
		UnreadCount:     unread,
		RecentMessages:  views,
	}})

	if joined {
		h.Rooms.Broadcast(m.ID, models.Event{
			Name: models.EvUserJoinedConversation,
			Data: models.RoomPresencePayload{
				ConversationID: m.ID,
				UserID:         c.UserID(),
				LastSeen:       h.now(),
			},
		}, c.UserID())
	}
	return nil
}

func (h *Hub) handleLeave(c Client, payload json.RawMessage) error {
	ref, err := decodeConversationRef(payload)
	if err != nil {
		return err
	}
	h.Typing.Stop(c.UserID(), ref.ConversationID)
	h.Rooms.Leave(c.UserID(), ref.ConversationID)
	h.Rooms.Broadcast(ref.ConversationID, models.Event{
		Name: models.EvUserLeftConversation,
		Data: models.RoomPresencePayload{
			ConversationID: ref.ConversationID,
			UserID:         c.UserID(),
			LastSeen:       h.now(),
		},
	}, c.UserID())
	return nil
}

func (h *Hub) handleTyping(c Client, payload json.RawMessage, start bool) error {
	ref, err := decodeConversationRef(payload)
	if err != nil {
		return err
	}
	if !h.Rooms.Contains(c.UserID(), ref.ConversationID) {
		return xerrors.ErrNotAParticipant
	}
	if start {
		h.Typing.Start(c.UserID(), c.UserName(), ref.ConversationID)
	} else {
		h.Typing.Stop(c.UserID(), ref.ConversationID)
	}
	return nil
}

// handleSendMessage validates, rate-limits, block-checks, persists, and only
// then broadcasts. Persist-before-broadcast means a crash in between leaves
// a saved-but-unbroadcast message, recoverable through the history reload;
// the reverse can never happen.
func (h *Hub) handleSendMessage(c Client, payload json.RawMessage) error {
	var p models.SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return xerrors.NewValidation("payload", "malformed send_message payload")
	}
	if p.ConversationID == "" {
		return xerrors.NewValidation("conversation_id", "required")
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return xerrors.NewValidation("content", "empty message")
	}
	if len(p.Content) > h.maxMessageLen {
		return xerrors.NewValidation("content", "message too long")
	}
	if p.MessageType == "" {
		p.MessageType = "text"
	}

	if !h.limiter.Allow(c.UserID(), h.now()) {
		return xerrors.ErrRateLimited
	}

	m, err := h.participantMatch(p.ConversationID, c.UserID())
	if err != nil {
		return err
	}

	blocked, err := h.store.IsBlockedEither(m.User1ID, m.User2ID)
	if err != nil {
		return xerrors.NewPersistence("block check", err)
	}
	if blocked {
		return xerrors.ErrBlocked
	}

	msg := &models.Message{
		MatchID:  m.ID,
		SenderID: c.UserID(),
		Content:  p.Content,
		Type:     p.MessageType,
	}
	if err := h.store.SaveMessage(msg); err != nil {
		return xerrors.NewPersistence("message save", err)
	}

	// The message is durable from here on: first-message bookkeeping, then
	// the broadcast, in that order.
	if _, err := h.lifecycle.RecordFirstMessage(m.ID, c.UserID()); err != nil {
		h.log.Error().Err(err).Str("match_id", m.ID).Msg("first-message record failed")
	}

	h.Typing.Stop(c.UserID(), m.ID)
	h.push(c, models.Event{Name: models.EvMessageSent, Data: models.MessageSentPayload{
		ClientTempID: p.ClientTempID,
		MessageID:    msg.ID,
		SentAt:       msg.CreatedAt,
	}})
	h.Rooms.Broadcast(m.ID, models.Event{Name: models.EvNewMessage, Data: models.NewMessageView(msg)}, "")
	return nil
}

func (h *Hub) handleMarkRead(c Client, payload json.RawMessage) error {
	ref, err := decodeConversationRef(payload)
	if err != nil {
		return err
	}
	m, err := h.participantMatch(ref.ConversationID, c.UserID())
	if err != nil {
		return err
	}

	readAt := h.now()
	count, err := h.store.MarkMessagesRead(m.ID, c.UserID(), readAt)
	if err != nil {
		return xerrors.NewPersistence("mark read", err)
	}

	h.Rooms.Broadcast(m.ID, models.Event{Name: models.EvMessagesRead, Data: models.MessagesReadPayload{
		ConversationID: m.ID,
		ReadBy:         c.UserID(),
		ReadAt:         readAt,
		Count:          count,
	}}, c.UserID())

	total, err := h.store.TotalUnread(c.UserID())
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", c.UserID()).Msg("unread total lookup failed")
		return nil
	}
	h.push(c, models.Event{Name: models.EvUnreadCount, Data: models.UnreadCountPayload{
		ConversationID: m.ID,
		Unread:         0,
		Total:          total,
	}})
	return nil
}

// participantMatch loads the conversation's match and checks the caller
// belongs to it and that it is still open for realtime traffic.
func (h *Hub) participantMatch(conversationID, userID string) (*models.Match, error) {
	m, err := h.store.GetMatch(conversationID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(userID) {
		return nil, xerrors.ErrNotAParticipant
	}
	if m.Status != models.MatchActive {
		return nil, xerrors.ErrConversationClosed
	}
	return m, nil
}

// --- Outward API ---

// NotifyUser pushes an event to every live connection of one user. Returns
// true when at least one delivery was dispatched.
func (h *Hub) NotifyUser(userID string, evt models.Event) bool {
	delivered := false
	for _, c := range h.Registry.ActiveConnections(userID) {
		if h.push(c, evt) {
			delivered = true
		}
	}
	return delivered
}

// NotifyMatch pushes an event to both participants of a match, online or
// not (offline participants simply miss it).
func (h *Hub) NotifyMatch(matchID string, evt models.Event) error {
	m, err := h.store.GetMatch(matchID)
	if err != nil {
		return err
	}
	h.NotifyUser(m.User1ID, evt)
	h.NotifyUser(m.User2ID, evt)
	return nil
}

// BroadcastAll pushes an event to every live connection in the process.
func (h *Hub) BroadcastAll(evt models.Event) {
	h.Registry.mu.RLock()
	users := make([]string, 0, len(h.Registry.conns))
	for userID := range h.Registry.conns {
		users = append(users, userID)
	}
	h.Registry.mu.RUnlock()

	for _, userID := range users {
		h.NotifyUser(userID, evt)
	}
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	return h.Registry.IsOnline(userID)
}

// OnlineCount reports the number of distinct online users.
func (h *Hub) OnlineCount() int {
	return h.Registry.OnlineCount()
}

// AnnounceMatch joins both participants of a fresh match into its room and
// pushes new_match to each. Called by whoever drove RecordSwipe to a
// MatchCreated result; the controller itself stays delivery-free.
func (h *Hub) AnnounceMatch(m *models.Match) {
	for _, userID := range []string{m.User1ID, m.User2ID} {
		if h.Registry.IsOnline(userID) {
			h.Rooms.Join(userID, m.ID)
		}
		other, _ := m.OtherParticipant(userID)
		h.NotifyUser(userID, models.Event{Name: models.EvNewMatch, Data: models.MatchSummary{
			MatchID:      m.ID,
			UserID:       other,
			ExpiresAt:    m.ExpiresAt,
			UrgencyLevel: models.UrgencyFor(m.RemainingTTL(h.now())),
		}})
	}
	h.metrics.MatchesCreated.Inc()
}

// --- helpers ---

// push performs one bounded, non-blocking send to a single connection.
func (h *Hub) push(c Client, evt models.Event) bool {
	select {
	case c.SendChannel() <- evt:
		return true
	default:
		h.metrics.RecordDroppedDelivery()
		h.log.Warn().
			Str("user_id", c.UserID()).
			Str("conn_id", c.ConnID()).
			Str("event", evt.Name).
			Msg("send buffer full, event dropped")
		return false
	}
}

func (h *Hub) pushError(c Client, tempID string, err error) {
	code := xerrors.Code(err)
	msg := err.Error()
	if code == "internal_error" {
		// Store details stay in the logs, not on the wire.
		msg = "request could not be completed"
	}
	h.push(c, models.Event{Name: models.EvError, Data: models.ErrorPayload{
		Code:         code,
		Message:      msg,
		ClientTempID: tempID,
	}})
}

func decodeConversationRef(payload json.RawMessage) (*models.ConversationRef, error) {
	var ref models.ConversationRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return nil, xerrors.NewValidation("payload", "malformed payload")
	}
	if ref.ConversationID == "" {
		return nil, xerrors.NewValidation("conversation_id", "required")
	}
	return &ref, nil
}

// clientTempID extracts the correlation token from a send_message payload
// so error events can carry it back.
func clientTempID(evt models.InboundEvent) string {
	if evt.Name != models.EvSendMessage {
		return ""
	}
	var p models.SendMessagePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return ""
	}
	return p.ClientTempID
}
