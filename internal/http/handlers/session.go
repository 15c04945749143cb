package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/auth"
	"github.com/loangraph/marketsync/internal/market"
)

type SessionHandler struct {
	sessions  *auth.Service
	identity  auth.Identity
	cookieCfg auth.CookieConfig
	logger    *slog.Logger
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

func NewSessionHandler(sessions *auth.Service, identity auth.Identity, cookieCfg auth.CookieConfig, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, identity: identity, cookieCfg: cookieCfg, logger: logger}
}

func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	sess, err := h.sessions.Login(c.Request.Context(), req.Passcode)
	switch {
	case errors.Is(err, auth.ErrBadPasscode):
		h.logger.Warn("console login refused", "ip", auth.ClientIP(c.Request))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
		return
	case errors.Is(err, auth.ErrIdentityUnknown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity_not_loaded"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_failed"})
		return
	}

	auth.SetSessionCookie(c.Writer, h.cookieCfg, sess.Token, h.sessions.TTL())
	h.logger.Info("console session opened", "user_id", sess.User.ID, "session_id", sess.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"user":    userJSON(sess.User),
		"session": gin.H{"authenticated": true},
	})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me reports the market user behind the backend cookie, as last refreshed.
func (h *SessionHandler) Me(c *gin.Context) {
	me, ok := h.identity.Me()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity_not_loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(me)})
}

func userJSON(u market.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"role":         u.Role,
		"display_name": u.DisplayName,
		"online":       u.Online,
	}
}
