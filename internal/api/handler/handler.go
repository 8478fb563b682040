// Package handler is the thin HTTP shell around the engine: token mint,
// WebSocket handshake, the swipe endpoint, and operational routes. No
// business logic lives here.
package handler

import (
	"github.com/rs/zerolog"

	"matchpoint/backend/internal/chathub"
	"matchpoint/backend/internal/match"
	"matchpoint/backend/internal/storage"
)

// Handler carries the engine surfaces the routes delegate to.
type Handler struct {
	Hub       *chathub.Hub
	Lifecycle *match.Controller
	Store     storage.Storage

	jwtSecret []byte
	log       zerolog.Logger
}

// New constructs the route handler.
func New(hub *chathub.Hub, lifecycle *match.Controller, store storage.Storage, jwtSecret string, log zerolog.Logger) *Handler {
	return &Handler{
		Hub:       hub,
		Lifecycle: lifecycle,
		Store:     store,
		jwtSecret: []byte(jwtSecret),
		log:       log.With().Str("component", "handler").Logger(),
	}
}
