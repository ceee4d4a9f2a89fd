package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListSessions(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	sessions, err := h.sessions.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:        session.ID,
			IPAddress: session.IPAddress,
			UserAgent: session.UserAgent,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

// AdminRevokeSessions is the remote session kill: durable rows and cached
// mirrors both go. Already-issued access tokens still live until expiry
// unless individually blacklisted via logout.
func (h HandlerSet) AdminRevokeSessions(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	if err := h.sessions.DeleteAllForUser(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.sessionCache.DeleteUserSessions(c.Request.Context(), userID); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("invalidate cached sessions failed")
	}

	c.Status(http.StatusNoContent)
}
