package models

import (
	"encoding/json"
	"time"
)

// Inbound event names accepted by the dispatcher.
const (
	EvJoinConversation  = "join_conversation"
	EvLeaveConversation = "leave_conversation"
	EvTypingStart       = "typing_start"
	EvTypingStop        = "typing_stop"
	EvSendMessage       = "send_message"
	EvMarkRead          = "mark_read"
	EvPing              = "ping"
)

// Outbound event names pushed by the engine.
const (
	EvWelcome                = "welcome"
	EvConversationJoined     = "conversation_joined"
	EvUserJoinedConversation = "user_joined_conversation"
	EvUserLeftConversation   = "user_left_conversation"
	EvTyping                 = "typing"
	EvMessageSent            = "message_sent"
	EvNewMessage             = "new_message"
	EvMessagesRead           = "messages_read"
	EvUnreadCount            = "unread_count"
	EvUserOnline             = "user_online"
	EvUserOffline            = "user_offline"
	EvNewMatch               = "new_match"
	EvMatchExpiring          = "match_expiring"
	EvPong                   = "pong"
	EvError                  = "error"
)

// Event is the tagged envelope every outbound push uses on the wire.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// InboundEvent is the raw envelope read off a connection. Payload stays
// undecoded until the dispatcher resolves the variant for Name.
type InboundEvent struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

// ConversationRef is the payload shared by join/leave/typing/mark_read
// events: everything the dispatcher needs is the conversation ID, the
// caller's identity always comes from the authenticated connection.
type ConversationRef struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessagePayload is the inbound payload for send_message.
type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
	// ClientTempID is the client's correlation token, echoed back on both the
	// success and the error path so optimistic UI state can be reconciled.
	ClientTempID string `json:"client_temp_id"`
}

// Outbound payloads.

type WelcomePayload struct {
	UserID      string    `json:"user_id"`
	DeviceCount int       `json:"device_count"`
	ServerTime  time.Time `json:"server_time"`
}

type ConversationJoinedPayload struct {
	ConversationID  string        `json:"conversation_id"`
	HasFirstMessage bool          `json:"has_first_message"`
	RemainingTTL    int64         `json:"remaining_ttl_seconds"`
	UrgencyLevel    UrgencyLevel  `json:"urgency_level"`
	UnreadCount     int64         `json:"unread_count"`
	RecentMessages  []MessageView `json:"recent_messages,omitempty"`
}

// MessageView is the wire shape of a persisted message.
type MessageView struct {
	MessageID      uint      `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	SentAt         time.Time `json:"sent_at"`
}

// NewMessageView converts a stored message for the wire.
func NewMessageView(m *Message) MessageView {
	return MessageView{
		MessageID:      m.ID,
		ConversationID: m.MatchID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		MessageType:    m.Type,
		SentAt:         m.CreatedAt,
	}
}

type RoomPresencePayload struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	LastSeen       time.Time `json:"last_seen"`
}

type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

type MessageSentPayload struct {
	ClientTempID string    `json:"client_temp_id"`
	MessageID    uint      `json:"message_id"`
	SentAt       time.Time `json:"sent_at"`
}

type MessagesReadPayload struct {
	ConversationID string    `json:"conversation_id"`
	ReadBy         string    `json:"read_by"`
	ReadAt         time.Time `json:"read_at"`
	Count          int64     `json:"count"`
}

type UnreadCountPayload struct {
	ConversationID string `json:"conversation_id"`
	Unread         int64  `json:"unread"`
	Total          int64  `json:"total"`
}

type MatchSummary struct {
	MatchID      string       `json:"match_id"`
	UserID       string       `json:"user_id"` // the other participant
	ExpiresAt    time.Time    `json:"expires_at"`
	UrgencyLevel UrgencyLevel `json:"urgency_level"`
}

type MatchExpiringPayload struct {
	ConversationID string       `json:"conversation_id"`
	HoursRemaining int64        `json:"hours_remaining"`
	UrgencyLevel   UrgencyLevel `json:"urgency_level"`
	// Critical marks the push variant with distinct visual/vibration
	// intensity; only set for the most urgent thresholds.
	Critical bool `json:"critical"`
}

type PongPayload struct {
	ServerTime time.Time `json:"server_time"`
}

// ErrorPayload is the in-band error event. Code is machine-readable;
// ClientTempID is present when the failed event carried one.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ClientTempID string `json:"client_temp_id,omitempty"`
}
