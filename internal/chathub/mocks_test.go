package chathub_test

import (
	"time"

	"github.com/stretchr/testify/mock"

	"matchpoint/backend/internal/chathub"
	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/storage"
)

// mockClient implements chathub.Client with a buffered channel so tests can
// inspect what the engine delivered.
type mockClient struct {
	userID   string
	userName string
	connID   string
	send     chan models.Event
}

func newMockClient(userID, connID string) *mockClient {
	return &mockClient{
		userID:   userID,
		userName: "name-" + userID,
		connID:   connID,
		send:     make(chan models.Event, 32),
	}
}

func (c *mockClient) UserID() string                   { return c.userID }
func (c *mockClient) UserName() string                 { return c.userName }
func (c *mockClient) ConnID() string                   { return c.connID }
func (c *mockClient) SendChannel() chan<- models.Event { return c.send }
func (c *mockClient) Run()                             {}
func (c *mockClient) Close()                           {}

// received drains every event delivered so far.
func (c *mockClient) received() []models.Event {
	var out []models.Event
	for {
		select {
		case evt := <-c.send:
			out = append(out, evt)
		default:
			return out
		}
	}
}

// receivedNames drains and returns just the event names, in order.
func (c *mockClient) receivedNames() []string {
	events := c.received()
	names := make([]string, 0, len(events))
	for _, evt := range events {
		names = append(names, evt.Name)
	}
	return names
}

var _ chathub.Client = (*mockClient)(nil)

// MockStorage is a hand-written testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetUser(userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveUser(user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *MockStorage) EnsureUser(userID, name string) (*models.User, error) {
	args := m.Called(userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) TouchLastSeen(userID string, at time.Time) error {
	return m.Called(userID, at).Error(0)
}

func (m *MockStorage) AppendBlockedUser(actorID, targetID string) error {
	return m.Called(actorID, targetID).Error(0)
}

func (m *MockStorage) IsBlockedEither(userA, userB string) (bool, error) {
	args := m.Called(userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SaveSwipe(swipe *models.Swipe) error {
	return m.Called(swipe).Error(0)
}

func (m *MockStorage) CreateMatchOnMutualLike(actorID, targetID string, deadline time.Time) (*models.Match, error) {
	args := m.Called(actorID, targetID, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockStorage) GetMatch(matchID string) (*models.Match, error) {
	args := m.Called(matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Match), args.Error(1)
}

func (m *MockStorage) ActiveMatchIDsForUser(userID string) ([]string, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) SetFirstMessageAt(matchID string, at time.Time) (bool, error) {
	args := m.Called(matchID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) UpdateMatchStatus(matchID string, from, to models.MatchStatus) (bool, error) {
	args := m.Called(matchID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) ExpireStaleMatches(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) MatchesExpiringBetween(from, to time.Time, thresholdHours int64) ([]models.Match, error) {
	args := m.Called(from, to, thresholdHours)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Match), args.Error(1)
}

func (m *MockStorage) MarkWarned(matchID string, thresholdHours int64, at time.Time) (bool, error) {
	args := m.Called(matchID, thresholdHours, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) SaveMessage(msg *models.Message) error {
	return m.Called(msg).Error(0)
}

func (m *MockStorage) RecentMessages(conversationID string, limit int) ([]models.Message, error) {
	args := m.Called(conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) MarkMessagesRead(conversationID, readerID string, at time.Time) (int64, error) {
	args := m.Called(conversationID, readerID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) UnreadCount(conversationID, readerID string) (int64, error) {
	args := m.Called(conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) TotalUnread(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) PublishEvent(conversationID string, evt models.Event) error {
	return m.Called(conversationID, evt).Error(0)
}

var _ storage.Storage = (*MockStorage)(nil)
