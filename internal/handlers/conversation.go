package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
	"realtime-service/internal/ratelimit"
	"realtime-service/internal/repositories"
	"realtime-service/internal/typing"
)

// ConversationHandler manages conversation endpoints plus the presence and
// typing read paths.
type ConversationHandler struct {
	convRepo repositories.ConversationRepository
	limiter  ratelimit.Limiter
	presence *presence.Tracker
	typing   *typing.Tracker
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convRepo repositories.ConversationRepository, limiter ratelimit.Limiter, presenceTracker *presence.Tracker, typingTracker *typing.Tracker) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, limiter: limiter, presence: presenceTracker, typing: typingTracker}
}

// CreateConversation creates a conversation, gated by the per-day window.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ParticipantIDs []int64 `json:"participant_ids" binding:"required"`
		Title          string  `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	status, err := h.limiter.Check(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check rate limit"})
		return
	}
	if status.ConversationsRemaining <= 0 {
		observability.IncRateLimitRejection(string(ratelimit.KindConversation))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":    "rate limit exceeded",
			"reset_at": status.ResetAt,
		})
		return
	}

	conv, err := h.convRepo.CreateConversation(ctx, userID, req.ParticipantIDs, req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	logIgnored(h.limiter.Increment(ctx, userID, ratelimit.KindConversation), "rate limit increment")

	c.JSON(http.StatusCreated, gin.H{"conversation": conv})
}

// GetConversation returns one conversation the caller belongs to.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	conv, err := h.convRepo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// ListConversations returns the user's conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt64("userID")
	convs, err := h.convRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetRateLimit reports the caller's remaining budget.
func (h *ConversationHandler) GetRateLimit(c *gin.Context) {
	status, err := h.limiter.Check(c.Request.Context(), c.GetInt64("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check rate limit"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetBulkPresence resolves presence for a comma-separated user id list in one
// batched lookup.
func (h *ConversationHandler) GetBulkPresence(c *gin.Context) {
	raw := c.Query("user_ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids is required"})
		return
	}

	parts := strings.Split(raw, ",")
	userIDs := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		userIDs = append(userIDs, id)
	}

	result, err := h.presence.GetBulkPresence(c.Request.Context(), userIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": result})
}

// GetTypingUsers lists who is typing in a conversation the caller belongs to.
func (h *ConversationHandler) GetTypingUsers(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.convRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	users, err := h.typing.GetTypingUsers(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"typing": users})
}
