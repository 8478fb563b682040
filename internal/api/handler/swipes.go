package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/xerrors"
)

// RecordSwipe is the swipe endpoint: it drives the lifecycle controller and,
// when the decision comes back MatchCreated, hands the result to the hub for
// real-time announcement. The two steps stay separate so the decision logic
// remains testable without delivery collaborators.
func (h *Handler) RecordSwipe(c *gin.Context) {
	actor, err := h.VerifyCredential(bearerFromRequest(c))
	if err != nil {
		var ae *xerrors.AuthError
		if errors.As(err, &ae) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ae.Reason})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification unavailable"})
		return
	}

	var body struct {
		TargetID string             `json:"target_id"`
		Action   models.SwipeAction `json:"action"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
		return
	}

	result, err := h.Lifecycle.RecordSwipe(actor.ID, body.TargetID, body.Action)
	if err != nil {
		status := http.StatusInternalServerError
		switch xerrors.Code(err) {
		case "self_action", "validation_failed":
			status = http.StatusBadRequest
		case "duplicate_action":
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": xerrors.Code(err)})
		return
	}

	if result.Match != nil {
		h.Hub.AnnounceMatch(result.Match)
		c.JSON(http.StatusOK, gin.H{"matched": true, "match_id": result.Match.ID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": false})
}
