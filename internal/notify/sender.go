// Package notify is the hand-off point to the external notification
// delivery system. The engine decides whether and what to send; transport
// (push, email) lives outside the process.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"matchpoint/backend/internal/models"
)

// Request describes one out-of-band notification the engine wants sent.
// Channel is the engine's transport decision ("email" or "push"); the
// delivery worker honors it, the engine never touches transport itself.
type Request struct {
	UserID         string              `json:"user_id"`
	ConversationID string              `json:"conversation_id"`
	Kind           string              `json:"kind"`
	Channel        string              `json:"channel"`
	HoursRemaining int64               `json:"hours_remaining"`
	Urgency        models.UrgencyLevel `json:"urgency"`
	RequestedAt    time.Time           `json:"requested_at"`
}

// Sender dispatches notification requests to the external delivery worker.
// Dispatch is best-effort; a failure is logged by the caller and not
// retried, which bounds notification volume.
type Sender interface {
	SendExpirationWarning(ctx context.Context, req Request) error
}

// QueueSender hands requests to the delivery worker through a Redis list.
type QueueSender struct {
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewQueueSender creates a sender pushing onto the named Redis list.
func NewQueueSender(rdb *redis.Client, queue string, log zerolog.Logger) *QueueSender {
	return &QueueSender{
		rdb:   rdb,
		queue: queue,
		log:   log.With().Str("component", "notify").Logger(),
	}
}

// SendExpirationWarning enqueues the request as JSON.
func (s *QueueSender) SendExpirationWarning(ctx context.Context, req Request) error {
	req.Kind = "match_expiring"
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, s.queue, payload).Err(); err != nil {
		return err
	}
	s.log.Debug().
		Str("user_id", req.UserID).
		Str("conversation_id", req.ConversationID).
		Int64("hours_remaining", req.HoursRemaining).
		Msg("expiration warning queued")
	return nil
}
