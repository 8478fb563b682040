package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"matchpoint/backend/internal/models"
	"matchpoint/backend/internal/xerrors"
)

const tokenIssuer = "matchpoint-engine"

// GenerateToken mints a bearer token for a user ID.
func (h *Handler) GenerateToken(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
		"iss": tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// VerifyCredential is the engine's whole requirement of its authentication
// collaborator: an opaque bearer credential in, the verified user or a
// typed rejection out. Subject existence and account state are checked
// against the store so a locked account cannot hold a live connection.
func (h *Handler) VerifyCredential(credential string) (*models.User, error) {
	if credential == "" {
		return nil, &xerrors.AuthError{Reason: xerrors.ReasonMissingToken}
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		reason := xerrors.ReasonMalformedToken
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = xerrors.ReasonExpiredToken
		}
		return nil, &xerrors.AuthError{Reason: reason, Err: err}
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, &xerrors.AuthError{Reason: xerrors.ReasonMalformedToken, Err: err}
	}

	user, err := h.Store.GetUser(subject)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, &xerrors.AuthError{Reason: xerrors.ReasonUnknownSubject}
		}
		return nil, err
	}
	if !user.Active {
		return nil, &xerrors.AuthError{Reason: xerrors.ReasonSubjectLocked}
	}
	return user, nil
}

// CreateToken registers the user on first contact and returns a bearer
// token. Development convenience mirroring the production identity service.
func (h *Handler) CreateToken(c *gin.Context) {
	var body struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.UserID == "" {
		body.UserID = uuid.New().String()
	}
	if body.Name == "" {
		body.Name = "user-" + body.UserID[:8]
	}

	user, err := h.Store.EnsureUser(body.UserID, body.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("user ensure failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	token, err := h.GenerateToken(user.ID, 72*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
}

// bearerFromRequest pulls the credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token query
// parameter.
func bearerFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
