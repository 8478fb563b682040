package storage

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"matchpoint/backend/internal/models"
)

// SaveMessage persists a message; msg.ID and msg.CreatedAt are filled by
// GORM on return.
func (s *Service) SaveMessage(msg *models.Message) error {
	if err := s.DB.Create(msg).Error; err != nil {
		s.log.Error().Err(err).Str("conversation_id", msg.MatchID).Msg("failed to save message")
		return err
	}
	return nil
}

// RecentMessages returns the newest messages of a conversation in ascending
// creation order, for the history reload on join.
func (s *Service) RecentMessages(conversationID string, limit int) ([]models.Message, error) {
	var batch []models.Message
	err := s.DB.Where("match_id = ?", conversationID).
		Order("created_at desc").
		Limit(limit).
		Find(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
		batch[i], batch[j] = batch[j], batch[i]
	}
	return batch, nil
}

// MarkMessagesRead stamps every unread message addressed to the reader and
// returns how many were transitioned.
func (s *Service) MarkMessagesRead(conversationID, readerID string, at time.Time) (int64, error) {
	result := s.DB.Model(&models.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

// UnreadCount counts unread messages addressed to the reader in one
// conversation.
func (s *Service) UnreadCount(conversationID, readerID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID).
		Count(&count).Error
	return count, err
}

// TotalUnread counts unread messages addressed to the user across all of
// their active conversations.
func (s *Service) TotalUnread(userID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Message{}).
		Joins("JOIN matches ON matches.id = messages.match_id").
		Where("matches.status = ?", models.MatchActive).
		Where("matches.user1_id = ? OR matches.user2_id = ?", userID, userID).
		Where("messages.sender_id <> ? AND messages.read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// PublishEvent pushes a room event onto the Redis channel for the
// conversation. A single process delivers through its own registry; this
// channel is the extension point for multi-process fan-out, where peer
// processes subscribe and replay into their local registries.
func (s *Service) PublishEvent(conversationID string, evt models.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, "room:"+conversationID, payload).Err()
}
