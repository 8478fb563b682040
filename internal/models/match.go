package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchExpired   MatchStatus = "expired"
	MatchBlocked   MatchStatus = "blocked"
	MatchUnmatched MatchStatus = "unmatched"
)

// UrgencyLevel classifies how close a match is to expiring. Clients use it
// for styling; the notifier uses it to gate the critical push variant.
type UrgencyLevel string

const (
	UrgencyNormal   UrgencyLevel = "normal"
	UrgencyWarning  UrgencyLevel = "warning"
	UrgencyUrgent   UrgencyLevel = "urgent"
	UrgencyCritical UrgencyLevel = "critical"
)

// UrgencyFor derives the urgency level from the remaining time to expiry.
func UrgencyFor(remaining time.Duration) UrgencyLevel {
	switch {
	case remaining <= 2*time.Hour:
		return UrgencyCritical
	case remaining <= 6*time.Hour:
		return UrgencyUrgent
	case remaining <= 24*time.Hour:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// Match is a mutual-like pairing between two users. Its ID doubles as the
// conversation (room) ID for the real-time channel scoped to the pair.
//
// WarnedThresholds is the warning ledger: the set of threshold hours for
// which an expiration warning has already been dispatched. Entries are only
// ever appended, never removed, which is the sole idempotency guard against
// re-sending a warning on a later sweep.
type Match struct {
	ID      string `gorm:"primaryKey" json:"id"`
	User1ID string `gorm:"type:text;not null;index" json:"user1_id"`
	User2ID string `gorm:"type:text;not null;index" json:"user2_id"`

	// PairKey is the unordered pair identity "min:max". The unique index on
	// it is what makes mutual-like check-and-create race-safe: two concurrent
	// creations for the same pair cannot both commit.
	PairKey string `gorm:"type:text;not null;uniqueIndex" json:"-"`

	Status         MatchStatus `gorm:"type:text;not null;index" json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	FirstMessageAt *time.Time  `json:"first_message_at"`
	ExpiresAt      time.Time   `gorm:"not null;index" json:"expires_at"`

	WarnedThresholds pq.Int64Array `gorm:"type:bigint[]" json:"-"`
	LastWarningAt    *time.Time    `json:"-"`
}

// PairKey computes the unordered pair identity for two user IDs.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// BeforeCreate assigns a UUID and the pair key if unset.
func (m *Match) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.PairKey == "" {
		m.PairKey = PairKey(m.User1ID, m.User2ID)
	}
	return
}

// HasParticipant reports whether userID is one of the two participants.
func (m *Match) HasParticipant(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// OtherParticipant returns the participant opposite userID.
func (m *Match) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case m.User1ID:
		return m.User2ID, true
	case m.User2ID:
		return m.User1ID, true
	}
	return "", false
}

// RemainingTTL returns the time left until the match expires; zero or
// negative means the deadline has passed.
func (m *Match) RemainingTTL(now time.Time) time.Duration {
	return m.ExpiresAt.Sub(now)
}

// Answered reports whether a first message has been sent. An answered match
// no longer auto-expires and receives no further warnings.
func (m *Match) Answered() bool {
	return m.FirstMessageAt != nil
}

// Warned reports whether the warning for the given threshold (hours) has
// already been dispatched.
func (m *Match) Warned(thresholdHours int64) bool {
	for _, h := range m.WarnedThresholds {
		if h == thresholdHours {
			return true
		}
	}
	return false
}
