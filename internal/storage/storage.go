// Package storage is the persistence boundary of the engine: PostgreSQL via
// GORM for durable entities, Redis for the cross-process fan-out channel.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/xerrors"
)

// Storage is the narrow interface the realtime engine sees. Anything the
// engine persists or reads back goes through here, which keeps the
// components testable against a mock.
type Storage interface {
	// Users
	GetUser(userID string) (*models.User, error)
	SaveUser(user *models.User) error
	EnsureUser(userID, name string) (*models.User, error)
	TouchLastSeen(userID string, at time.Time) error
	AppendBlockedUser(actorID, targetID string) error
	IsBlockedEither(userA, userB string) (bool, error)

	// Swipes and matches
	SaveSwipe(swipe *models.Swipe) error
	CreateMatchOnMutualLike(actorID, targetID string, deadline time.Time) (*models.Match, error)
	GetMatch(matchID string) (*models.Match, error)
	ActiveMatchIDsForUser(userID string) ([]string, error)
	SetFirstMessageAt(matchID string, at time.Time) (bool, error)
	UpdateMatchStatus(matchID string, from, to models.MatchStatus) (bool, error)
	ExpireStaleMatches(now time.Time) (int64, error)
	MatchesExpiringBetween(from, to time.Time, thresholdHours int64) ([]models.Match, error)
	MarkWarned(matchID string, thresholdHours int64, at time.Time) (bool, error)

	// Messages
	SaveMessage(msg *models.Message) error
	RecentMessages(conversationID string, limit int) ([]models.Message, error)
	MarkMessagesRead(conversationID, readerID string, at time.Time) (int64, error)
	UnreadCount(conversationID, readerID string) (int64, error)
	TotalUnread(userID string) (int64, error)

	// Realtime fan-out extension point
	PublishEvent(conversationID string, evt models.Event) error
}

// Service implements Storage on top of GORM and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context

	log zerolog.Logger
}

// NewService constructs the storage service.
func NewService(db *gorm.DB, rdb *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
		log:   log.With().Str("component", "storage").Logger(),
	}
}

// Migrate creates or updates the schema for all engine-owned tables.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Swipe{},
		&models.Match{},
		&models.Message{},
	)
}

// --- Users ---

func (s *Service) GetUser(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// EnsureUser returns the user, creating it on first contact.
func (s *Service) EnsureUser(userID, name string) (*models.User, error) {
	user := models.User{
		ID:               userID,
		Name:             name,
		Active:           true,
		NotifyExpiration: true,
	}
	var existing models.User
	result := s.DB.Where("id = ?", userID).Attrs(user).FirstOrCreate(&existing)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info().Str("user_id", existing.ID).Msg("new user created on first contact")
	}
	return &existing, nil
}

func (s *Service) TouchLastSeen(userID string, at time.Time) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", at).Error
}

// AppendBlockedUser adds targetID to the actor's block list. Appending an
// already-blocked ID is a no-op.
func (s *Service) AppendBlockedUser(actorID, targetID string) error {
	return s.DB.Model(&models.User{}).
		Where("id = ? AND NOT (? = ANY(coalesce(blocked_user_ids, '{}')))", actorID, targetID).
		Update("blocked_user_ids", gorm.Expr("array_append(coalesce(blocked_user_ids, '{}'), ?)", targetID)).
		Error
}

// IsBlockedEither reports whether either user has the other on their block
// list.
func (s *Service) IsBlockedEither(userA, userB string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.User{}).
		Where("(id = ? AND ? = ANY(blocked_user_ids)) OR (id = ? AND ? = ANY(blocked_user_ids))",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
