package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"matchpoint/backend/internal/chathub"
	"matchpoint/backend/internal/xerrors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	// Allow any origin; tighten per deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates and upgrades a connection. Verification
// happens before the upgrade and inside the handshake timeout, so a client
// that fails auth is rejected with the typed reason and never holds a
// half-open anonymous connection.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user, err := h.VerifyCredential(bearerFromRequest(c))
	if err != nil {
		var ae *xerrors.AuthError
		if errors.As(err, &ae) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ae.Reason})
			return
		}
		h.log.Error().Err(err).Msg("credential verification failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "verification unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, user.ID, user.Name, uuid.New().String(), h.log)
	h.Hub.HandleConnect(client)
	client.Run()
}
