package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchpoint/backend/internal/api/handler"
	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/storage"
	"matchpoint/backend/internal/xerrors"
)

// stubStore serves the few storage calls the auth path makes; anything else
// panics through the embedded nil interface.
type stubStore struct {
	storage.Storage
	users map[string]*models.User
}

func (s *stubStore) GetUser(userID string) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return user, nil
}

func (s *stubStore) EnsureUser(userID, name string) (*models.User, error) {
	if user, ok := s.users[userID]; ok {
		return user, nil
	}
	user := &models.User{ID: userID, Name: name, Active: true}
	s.users[userID] = user
	return user, nil
}

func newAuthHandler(users ...*models.User) *handler.Handler {
	store := &stubStore{users: make(map[string]*models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return handler.New(nil, nil, store, "test-secret", zerolog.Nop())
}

func authReason(t *testing.T, err error) string {
	t.Helper()
	var ae *xerrors.AuthError
	require.ErrorAs(t, err, &ae)
	return ae.Reason
}

func TestVerifyCredential_RoundTrip(t *testing.T) {
	h := newAuthHandler(&models.User{ID: "user_A", Name: "Alice", Active: true})

	token, err := h.GenerateToken("user_A", time.Hour)
	require.NoError(t, err)

	user, err := h.VerifyCredential(token)
	require.NoError(t, err)
	assert.Equal(t, "user_A", user.ID)
	assert.Equal(t, "Alice", user.Name)
}

func TestVerifyCredential_Rejections(t *testing.T) {
	h := newAuthHandler(
		&models.User{ID: "user_A", Name: "Alice", Active: true},
		&models.User{ID: "user_L", Name: "Locked", Active: false},
	)

	t.Run("missing token", func(t *testing.T) {
		_, err := h.VerifyCredential("")
		assert.Equal(t, xerrors.ReasonMissingToken, authReason(t, err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := h.VerifyCredential("not-a-jwt")
		assert.Equal(t, xerrors.ReasonMalformedToken, authReason(t, err))
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := h.GenerateToken("user_A", -time.Hour)
		require.NoError(t, err)
		_, err = h.VerifyCredential(token)
		assert.Equal(t, xerrors.ReasonExpiredToken, authReason(t, err))
	})

	t.Run("foreign signing key", func(t *testing.T) {
		other := handler.New(nil, nil, &stubStore{}, "different-secret", zerolog.Nop())
		token, err := other.GenerateToken("user_A", time.Hour)
		require.NoError(t, err)
		_, err = h.VerifyCredential(token)
		assert.Equal(t, xerrors.ReasonMalformedToken, authReason(t, err))
	})

	t.Run("unknown subject", func(t *testing.T) {
		token, err := h.GenerateToken("user_ghost", time.Hour)
		require.NoError(t, err)
		_, err = h.VerifyCredential(token)
		assert.Equal(t, xerrors.ReasonUnknownSubject, authReason(t, err))
	})

	t.Run("locked account", func(t *testing.T) {
		token, err := h.GenerateToken("user_L", time.Hour)
		require.NoError(t, err)
		_, err = h.VerifyCredential(token)
		assert.Equal(t, xerrors.ReasonSubjectLocked, authReason(t, err))
	})
}

func TestVerifyCredential_StoreFailurePassesThrough(t *testing.T) {
	store := &failingStore{err: errors.New("connection refused")}
	h := handler.New(nil, nil, store, "test-secret", zerolog.Nop())

	token, err := h.GenerateToken("user_A", time.Hour)
	require.NoError(t, err)

	_, err = h.VerifyCredential(token)
	require.Error(t, err)
	var ae *xerrors.AuthError
	assert.False(t, errors.As(err, &ae), "infrastructure failure is not an auth rejection")
}

type failingStore struct {
	storage.Storage
	err error
}

func (s *failingStore) GetUser(string) (*models.User, error) { return nil, s.err }

func TestCreateToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAuthHandler()

	body, _ := json.Marshal(gin.H{"user_id": "user_A", "name": "Alice"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateToken(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user_A", resp.UserID)

	// The minted token authenticates the user it was minted for.
	user, err := h.VerifyCredential(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user_A", user.ID)
}

func TestCreateToken_BadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAuthHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader([]byte("{broken")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateToken(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
