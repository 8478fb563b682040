package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a persisted chat message. The embedded gorm.Model provides the
// message ID and timestamps; CreatedAt is the authoritative ordering within
// a conversation.
type Message struct {
	gorm.Model

	// MatchID is the conversation the message belongs to.
	MatchID  string `gorm:"type:uuid;not null;index:idx_match_sender"`
	SenderID string `gorm:"type:text;not null;index:idx_match_sender"`
	Content  string `gorm:"type:text;not null"`
	// Type is the message kind ("text", "photo", "gif").
	Type string `gorm:"type:text;not null"`

	// ReadAt is set when the recipient marks the conversation read. Rooms are
	// two-party, so one timestamp per message is sufficient.
	ReadAt *time.Time `gorm:"index"`
}
