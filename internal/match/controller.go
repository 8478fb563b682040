// Package match owns the match lifecycle: mutual-like detection, the
// active/expired/blocked/unmatched state machine, and the progressive
// expiration warning sweep.
package match

import (
	"time"

	"github.com/rs/zerolog"

	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/storage"
	"matchpoint/backend/internal/xerrors"
)

// SwipeResult is the pure decision value RecordSwipe returns. The caller
// (the dispatcher or the swipe endpoint) turns Match, when set, into
// real-time notifications; the controller itself never touches delivery.
type SwipeResult struct {
	Action models.SwipeAction
	// Match is non-nil when this swipe completed a mutual like.
	Match *models.Match
}

// Controller drives the match state machine against the persistent store.
type Controller struct {
	store storage.Storage
	ttl   time.Duration
	log   zerolog.Logger

	now func() time.Time
}

// NewController creates a lifecycle controller with the given match TTL.
func NewController(store storage.Storage, ttl time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "match").Logger(),
		now:   time.Now,
	}
}

// RecordSwipe records a one-way decision and, for positive actions, runs
// mutual-like detection. The check-and-create is a single authoritative
// storage step, so two concurrent opposite-direction likes yield exactly
// one match.
func (c *Controller) RecordSwipe(actorID, targetID string, action models.SwipeAction) (*SwipeResult, error) {
	if actorID == targetID {
		return nil, xerrors.ErrSelfAction
	}
	if !action.Valid() {
		return nil, xerrors.NewValidation("action", "unknown swipe action")
	}

	swipe := &models.Swipe{ActorID: actorID, TargetID: targetID, Action: action}
	if err := c.store.SaveSwipe(swipe); err != nil {
		return nil, err
	}

	result := &SwipeResult{Action: action}
	if !action.Positive() {
		return result, nil
	}

	deadline := c.now().Add(c.ttl)
	created, err := c.store.CreateMatchOnMutualLike(actorID, targetID, deadline)
	if err != nil {
		return nil, xerrors.NewPersistence("mutual-like check", err)
	}
	if created != nil {
		c.log.Info().
			Str("match_id", created.ID).
			Str("user1", created.User1ID).
			Str("user2", created.User2ID).
			Time("expires_at", created.ExpiresAt).
			Msg("match created from mutual like")
		result.Match = created
	}
	return result, nil
}

// RecordFirstMessage stamps the first-message time once. Returns true when
// this call set the stamp; false means it was already set and the call was
// a no-op. Setting the stamp is also what disarms the expiration path.
func (c *Controller) RecordFirstMessage(matchID, senderID string) (bool, error) {
	m, err := c.store.GetMatch(matchID)
	if err != nil {
		return false, err
	}
	if !m.HasParticipant(senderID) {
		return false, xerrors.ErrNotAParticipant
	}
	if m.Answered() {
		return false, nil
	}
	set, err := c.store.SetFirstMessageAt(matchID, c.now())
	if err != nil {
		return false, err
	}
	if set {
		c.log.Info().Str("match_id", matchID).Str("sender_id", senderID).Msg("first message recorded")
	}
	return set, nil
}

// ExpireStale transitions every active, unanswered match past its deadline
// to expired and returns the count. Idempotent: re-running with no time
// elapsed transitions nothing further.
func (c *Controller) ExpireStale() (int64, error) {
	count, err := c.store.ExpireStaleMatches(c.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		c.log.Info().Int64("count", count).Msg("stale matches expired")
	}
	return count, nil
}

// Unmatch transitions the match to unmatched on behalf of a participant.
func (c *Controller) Unmatch(matchID, actorID string) error {
	return c.transition(matchID, actorID, models.MatchUnmatched)
}

// Block transitions the match to blocked and adds the other participant to
// the actor's block list.
func (c *Controller) Block(matchID, actorID string) error {
	m, err := c.store.GetMatch(matchID)
	if err != nil {
		return err
	}
	other, ok := m.OtherParticipant(actorID)
	if !ok {
		return xerrors.ErrNotAParticipant
	}
	if err := c.transition(matchID, actorID, models.MatchBlocked); err != nil {
		return err
	}
	return c.store.AppendBlockedUser(actorID, other)
}

func (c *Controller) transition(matchID, actorID string, to models.MatchStatus) error {
	m, err := c.store.GetMatch(matchID)
	if err != nil {
		return err
	}
	if !m.HasParticipant(actorID) {
		return xerrors.ErrNotAParticipant
	}
	changed, err := c.store.UpdateMatchStatus(matchID, models.MatchActive, to)
	if err != nil {
		return err
	}
	if !changed {
		// Already left active through another transition; benign.
		return xerrors.ErrDuplicateAction
	}
	c.log.Info().Str("match_id", matchID).Str("actor_id", actorID).Str("status", string(to)).Msg("match transitioned")
	return nil
}
