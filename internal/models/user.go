package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User represents an account known to the engine. Profile and preference
// computation live elsewhere; the engine only reads what it needs to route
// and gate notifications.
type User struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"type:text;not null" json:"name"`
	Active bool   `gorm:"default:true" json:"active"`

	// NotifyExpiration controls whether the user receives match expiration
	// warnings at all, on any channel.
	NotifyExpiration bool `gorm:"default:true" json:"notify_expiration"`

	// QuietHoursStart/End bound the daily window (hours, local to the server
	// clock) in which out-of-band notifications are suppressed. Equal values
	// mean no quiet hours.
	QuietHoursStart int `json:"quiet_hours_start"`
	QuietHoursEnd   int `json:"quiet_hours_end"`

	// BlockedUserIDs is the user's block list.
	BlockedUserIDs pq.StringArray `gorm:"type:text[]" json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID if the ID is unset.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// HasBlocked reports whether the given user is on this user's block list.
func (u *User) HasBlocked(userID string) bool {
	for _, id := range u.BlockedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// InQuietHours reports whether t falls inside the user's quiet-hours window.
// The window may wrap past midnight (e.g. 22 to 8).
func (u *User) InQuietHours(t time.Time) bool {
	if u.QuietHoursStart == u.QuietHoursEnd {
		return false
	}
	h := t.Hour()
	if u.QuietHoursStart < u.QuietHoursEnd {
		return h >= u.QuietHoursStart && h < u.QuietHoursEnd
	}
	return h >= u.QuietHoursStart || h < u.QuietHoursEnd
}
