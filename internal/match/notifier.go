package match

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"matchpoint/backend/internal/metrics"
	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/notify"
	"matchpoint/backend/internal/storage"
)

// Pusher is the in-connection delivery surface the notifier uses. The hub
// implements it; the notifier never sees sockets.
type Pusher interface {
	IsOnline(userID string) bool
	NotifyUser(userID string, evt models.Event) bool
}

// criticalThresholdHours bounds the thresholds that trigger the critical
// in-connection push variant.
const criticalThresholdHours = 2

// Notifier is the progressive expiration sweep. Each pass first expires
// stale matches, then walks the warning thresholds from largest to
// smallest, warning each unanswered match whose deadline falls in the
// threshold's window and whose ledger flag is still clear.
//
// The sweep snapshots candidates per threshold and processes each match
// independently, holding no engine lock across persistence or delivery
// calls. Re-entrancy is safe: the ledger append in the store is the sole
// idempotency guard, so an overlapping pass that loses the flag write
// skips the match.
type Notifier struct {
	store      storage.Storage
	lifecycle  *Controller
	pusher     Pusher
	sender     notify.Sender
	thresholds []int64 // hours, largest first
	interval   time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger

	now func() time.Time
}

// NewNotifier creates the sweep with the given threshold policy (hours,
// ordered largest to smallest) and cadence.
func NewNotifier(
	store storage.Storage,
	lifecycle *Controller,
	pusher Pusher,
	sender notify.Sender,
	thresholds []int64,
	interval time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Notifier {
	return &Notifier{
		store:      store,
		lifecycle:  lifecycle,
		pusher:     pusher,
		sender:     sender,
		thresholds: thresholds,
		interval:   interval,
		metrics:    m,
		log:        log.With().Str("component", "notifier").Logger(),
		now:        time.Now,
	}
}

// Run executes a pass every interval until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.log.Info().
		Dur("interval", n.interval).
		Ints64("thresholds", n.thresholds).
		Msg("expiration notifier started")

	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("expiration notifier stopped")
			return
		case <-ticker.C:
			n.Sweep(ctx)
		}
	}
}

// Sweep runs one full pass: expiry first, then the warning walk.
func (n *Notifier) Sweep(ctx context.Context) {
	expired, err := n.lifecycle.ExpireStale()
	if err != nil {
		n.log.Error().Err(err).Msg("expiry sweep failed")
	} else if expired > 0 {
		for i := int64(0); i < expired; i++ {
			n.metrics.MatchesExpired.Inc()
		}
	}

	now := n.now()
	for _, h := range n.thresholds {
		from := now.Add(time.Duration(h) * time.Hour)
		to := from.Add(n.interval)
		candidates, err := n.store.MatchesExpiringBetween(from, to, h)
		if err != nil {
			n.log.Error().Err(err).Int64("threshold_hours", h).Msg("candidate select failed")
			continue
		}
		for i := range candidates {
			n.warn(ctx, &candidates[i], h, now)
		}
	}
}

// warn dispatches the threshold warning for one match on both channels,
// then writes the ledger flag. The flag write happens only after at least
// one delivery attempt was dispatched; once written, no later sweep will
// warn this match for this threshold again, even if delivery failed.
func (n *Notifier) warn(ctx context.Context, m *models.Match, thresholdHours int64, now time.Time) {
	urgency := models.UrgencyFor(m.RemainingTTL(now))
	payload := models.MatchExpiringPayload{
		ConversationID: m.ID,
		HoursRemaining: thresholdHours,
		UrgencyLevel:   urgency,
		Critical:       thresholdHours <= criticalThresholdHours,
	}
	evt := models.Event{Name: models.EvMatchExpiring, Data: payload}

	attempts := 0
	for _, userID := range []string{m.User1ID, m.User2ID} {
		user, err := n.store.GetUser(userID)
		if err != nil {
			n.log.Error().Err(err).Str("user_id", userID).Str("match_id", m.ID).Msg("preference lookup failed")
			continue
		}
		if !user.NotifyExpiration {
			continue
		}

		// Channels are independent: push in-connection when online, and
		// hand off out-of-band regardless of online state.
		if n.pusher.IsOnline(userID) {
			n.pusher.NotifyUser(userID, evt)
			attempts++
		}
		// Far thresholds go out by email only; the urgent ones earn a
		// device push. Quiet hours suppress the email channel, not push.
		channel := "email"
		if thresholdHours <= criticalThresholdHours {
			channel = "push"
		}
		if channel != "email" || !user.InQuietHours(now) {
			req := notify.Request{
				UserID:         userID,
				ConversationID: m.ID,
				Channel:        channel,
				HoursRemaining: thresholdHours,
				Urgency:        urgency,
				RequestedAt:    now,
			}
			if err := n.sender.SendExpirationWarning(ctx, req); err != nil {
				n.log.Warn().Err(err).Str("user_id", userID).Str("match_id", m.ID).Msg("out-of-band dispatch failed")
			}
			attempts++
		}
	}

	if attempts == 0 {
		// Both participants opted out or were unreachable on every channel;
		// leave the flag clear and let the window move past the deadline.
		return
	}

	marked, err := n.store.MarkWarned(m.ID, thresholdHours, now)
	if err != nil {
		n.log.Error().Err(err).Str("match_id", m.ID).Int64("threshold_hours", thresholdHours).Msg("ledger write failed")
		return
	}
	if !marked {
		// A concurrent pass won the flag; nothing more to do.
		return
	}
	n.metrics.RecordWarning(string(urgency))
	n.log.Info().
		Str("match_id", m.ID).
		Int64("threshold_hours", thresholdHours).
		Str("urgency", string(urgency)).
		Msg("expiration warning dispatched")
}
