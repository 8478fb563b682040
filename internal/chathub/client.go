package chathub

import "matchpoint/backend/internal/models"

// Client is the interface for one live connection handle. A user with
// several devices or tabs holds several Clients at once; the registry keys
// them by (user, connection) so presence survives any single handle closing.
type Client interface {
	// UserID returns the authenticated identity bound at handshake.
	UserID() string
	// UserName returns the display name carried into typing broadcasts.
	UserName() string
	// ConnID returns the unique identifier of this connection handle.
	ConnID() string

	// SendChannel returns the channel the engine writes outbound events to.
	// Sends into it must never block; a full buffer means the delivery is
	// dropped for this handle.
	SendChannel() chan<- models.Event

	// Run starts the connection's read and write pumps.
	Run()
	// Close shuts down the connection and its channels.
	Close()
}
