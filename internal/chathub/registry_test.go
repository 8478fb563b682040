package chathub_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"matchpoint/backend/internal/chathub"
)

func TestRegistry_RegisterAndPresence(t *testing.T) {
	registry := chathub.NewRegistry(zerolog.Nop())

	assert.False(t, registry.IsOnline("user_A"))
	assert.Equal(t, 0, registry.OnlineCount())

	phone := newMockClient("user_A", "conn-1")
	count := registry.Register(phone)
	assert.Equal(t, 1, count)
	assert.True(t, registry.IsOnline("user_A"))
	assert.Equal(t, 1, registry.OnlineCount())

	// Second device for the same user.
	laptop := newMockClient("user_A", "conn-2")
	count = registry.Register(laptop)
	assert.Equal(t, 2, count)
	assert.True(t, registry.IsOnline("user_A"))
	assert.Equal(t, 1, registry.OnlineCount(), "two devices are still one user")
	assert.Len(t, registry.ActiveConnections("user_A"), 2)
}

func TestRegistry_DeregisterLastHandleGoesOffline(t *testing.T) {
	registry := chathub.NewRegistry(zerolog.Nop())
	phone := newMockClient("user_A", "conn-1")
	laptop := newMockClient("user_A", "conn-2")
	registry.Register(phone)
	registry.Register(laptop)

	lastGone := registry.Deregister(phone)
	assert.False(t, lastGone, "one device remains")
	assert.True(t, registry.IsOnline("user_A"))

	lastGone = registry.Deregister(laptop)
	assert.True(t, lastGone, "last device gone")
	assert.False(t, registry.IsOnline("user_A"))
	assert.Nil(t, registry.ActiveConnections("user_A"))
	assert.Equal(t, 0, registry.OnlineCount())
}

func TestRegistry_DeregisterUnknownIsNoOp(t *testing.T) {
	registry := chathub.NewRegistry(zerolog.Nop())

	assert.False(t, registry.Deregister(newMockClient("ghost", "conn-1")))

	registry.Register(newMockClient("user_A", "conn-1"))
	assert.False(t, registry.Deregister(newMockClient("user_A", "other-conn")))
	assert.True(t, registry.IsOnline("user_A"))
}

func TestRegistry_LastSeenTracking(t *testing.T) {
	registry := chathub.NewRegistry(zerolog.Nop())

	_, ok := registry.LastSeen("user_A")
	assert.False(t, ok)

	registry.Register(newMockClient("user_A", "conn-1"))
	before, ok := registry.LastSeen("user_A")
	assert.True(t, ok)

	registry.Touch("user_A")
	after, ok := registry.LastSeen("user_A")
	assert.True(t, ok)
	assert.False(t, after.Before(before))
}
