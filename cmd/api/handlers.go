package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mernchat/server/internal/auth"
	"github.com/mernchat/server/internal/data"
)

const tokenCookie = "token"

// tokenMaxAge mirrors the token validity configured on the JWT manager.
const tokenMaxAge = 24 * 60 * 60

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// setTokenCookie attaches the session JWT. SameSite=None + Secure matches
// the cross-origin browser client.
func setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(tokenCookie, token, maxAge, "/", "", true, true)
}

// currentClaims resolves the authenticated identity from the token cookie.
func (s *server) currentClaims(c *gin.Context) (*auth.Claims, error) {
	token, err := c.Cookie(tokenCookie)
	if err != nil || token == "" {
		return nil, errors.New("no token")
	}
	return s.auth.VerifyToken(token)
}

// handleRegister creates a user, hashes the password and sets the JWT cookie.
func (s *server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error("hash password failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), req.Username, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is taken"})
			return
		}
		s.log.Error("create user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		s.log.Error("generate token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	setTokenCookie(c, token, tokenMaxAge)
	c.JSON(http.StatusCreated, gin.H{"id": user.ID.Hex()})
}

// handleLogin verifies credentials and sets the JWT cookie.
func (s *server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := s.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		// same response for unknown user and bad password
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong username or password"})
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong username or password"})
		return
	}

	token, _, err := s.auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		s.log.Error("generate token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	setTokenCookie(c, token, tokenMaxAge)
	c.JSON(http.StatusOK, gin.H{"id": user.ID.Hex()})
}

// handleLogout clears the session cookie.
func (s *server) handleLogout(c *gin.Context) {
	setTokenCookie(c, "", -1)
	c.JSON(http.StatusOK, "ok")
}

// handleProfile returns the identity encoded in the session cookie.
func (s *server) handleProfile(c *gin.Context) {
	claims, err := s.currentClaims(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, "no token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": claims.UserID, "username": claims.Username})
}

// handlePeople lists every registered user (id and username only), so the
// client can show offline contacts next to the live presence set.
func (s *server) handlePeople(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		s.log.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if users == nil {
		users = []*data.User{}
	}
	c.JSON(http.StatusOK, users)
}

// handleMessages returns the full conversation between the authenticated
// user and :userId, oldest first. Clients call it to hydrate history on
// reconnect; live delivery and this endpoint are deliberately independent.
func (s *server) handleMessages(c *gin.Context) {
	claims, err := s.currentClaims(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, "no token")
		return
	}

	other := c.Param("userId")
	msgs, err := s.msgs.GetConversation(c.Request.Context(), claims.UserID, other)
	if err != nil {
		s.log.Error("conversation query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if msgs == nil {
		msgs = []*data.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}
