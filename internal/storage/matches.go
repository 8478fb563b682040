package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/xerrors"
)

// SaveSwipe records a one-way decision. A repeated swipe on the same target
// surfaces as ErrDuplicateAction via the unique (actor, target) index.
func (s *Service) SaveSwipe(swipe *models.Swipe) error {
	err := s.DB.Create(swipe).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return xerrors.ErrDuplicateAction
	}
	return err
}

// CreateMatchOnMutualLike is the single authoritative check-and-create step
// for mutual-like detection. Inside one transaction it looks for a
// reciprocal positive swipe and, if present, creates the match. The unique
// index on pair_key makes the create race-safe: when both directions commit
// their swipe at the same instant and both reach the create, exactly one
// insert wins and the loser sees the duplicate key, which is treated as
// "already matched", not an error.
//
// Returns nil with no error when there is no reciprocal like yet.
func (s *Service) CreateMatchOnMutualLike(actorID, targetID string, deadline time.Time) (*models.Match, error) {
	var match *models.Match

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reciprocal int64
		err := tx.Model(&models.Swipe{}).
			Where("actor_id = ? AND target_id = ? AND action IN ?",
				targetID, actorID, []models.SwipeAction{models.SwipeLike, models.SwipeSuperLike}).
			Count(&reciprocal).Error
		if err != nil {
			return err
		}
		if reciprocal == 0 {
			return nil
		}

		m := &models.Match{
			User1ID:   actorID,
			User2ID:   targetID,
			Status:    models.MatchActive,
			ExpiresAt: deadline,
		}
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// The opposite direction won the race; no new match.
				return nil
			}
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *Service) GetMatch(matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.First(&match, "id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ActiveMatchIDsForUser lists the conversations a user should be joined to
// on connect.
func (s *Service) ActiveMatchIDsForUser(userID string) ([]string, error) {
	var ids []string
	err := s.DB.Model(&models.Match{}).
		Where("status = ?", models.MatchActive).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetFirstMessageAt stamps the first-message time exactly once. Returns
// false when the stamp was already set.
func (s *Service) SetFirstMessageAt(matchID string, at time.Time) (bool, error) {
	result := s.DB.Model(&models.Match{}).
		Where("id = ? AND first_message_at IS NULL", matchID).
		Update("first_message_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateMatchStatus transitions a match from one status to another. The
// from-status guard makes repeated transitions no-ops.
func (s *Service) UpdateMatchStatus(matchID string, from, to models.MatchStatus) (bool, error) {
	result := s.DB.Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireStaleMatches transitions every active, unanswered match past its
// deadline to expired and returns the count. Safe to call repeatedly: the
// status guard means a second pass matches zero rows.
func (s *Service) ExpireStaleMatches(now time.Time) (int64, error) {
	result := s.DB.Model(&models.Match{}).
		Where("status = ? AND first_message_at IS NULL AND expires_at <= ?", models.MatchActive, now).
		Update("status", models.MatchExpired)
	return result.RowsAffected, result.Error
}

// MatchesExpiringBetween selects active, unanswered matches whose deadline
// falls in [from, to) and whose ledger does not yet carry thresholdHours.
func (s *Service) MatchesExpiringBetween(from, to time.Time, thresholdHours int64) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.
		Where("status = ? AND first_message_at IS NULL", models.MatchActive).
		Where("expires_at >= ? AND expires_at < ?", from, to).
		Where("NOT (? = ANY(coalesce(warned_thresholds, '{}')))", thresholdHours).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "expires_at"}}).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// MarkWarned appends thresholdHours to the match's warning ledger. The
// NOT-ANY guard makes the append atomic with the already-warned check, so a
// concurrent second sweep returns false here and must skip the match.
func (s *Service) MarkWarned(matchID string, thresholdHours int64, at time.Time) (bool, error) {
	result := s.DB.Model(&models.Match{}).
		Where("id = ? AND NOT (? = ANY(coalesce(warned_thresholds, '{}')))", matchID, thresholdHours).
		Updates(map[string]interface{}{
			"warned_thresholds": gorm.Expr("array_append(coalesce(warned_thresholds, '{}'), ?)", thresholdHours),
			"last_warning_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
