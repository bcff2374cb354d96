package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"realtime-service/internal/broadcast"
	"realtime-service/internal/observability"
	"realtime-service/internal/ratelimit"
	"realtime-service/internal/receipts"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
)

// MessageHandler manages the message send/edit/delete endpoints that feed the
// realtime broadcast pipeline.
type MessageHandler struct {
	convRepo    repositories.ConversationRepository
	messageRepo repositories.MessageRepository
	receipts    receipts.Repository
	limiter     ratelimit.Limiter
	broadcaster *broadcast.Broadcaster
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(convRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, receiptRepo receipts.Repository, limiter ratelimit.Limiter, broadcaster *broadcast.Broadcaster, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		receipts:    receiptRepo,
		limiter:     limiter,
		broadcaster: broadcaster,
		audit:       audit,
	}
}

// PostMessage persists and broadcasts a message. The rate limit check runs
// before any persistence work; receipt creation and counter bookkeeping are
// best-effort and never fail the send.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
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
	if status.MessagesRemaining <= 0 {
		observability.IncRateLimitRejection(string(ratelimit.KindMessage))
		h.audit.Emit(ctx, "WARN", "rate_limit_exceeded", requestIDFromContext(c), &userID, map[string]any{"kind": "message"})
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":    "rate limit exceeded",
			"reset_at": status.ResetAt,
		})
		return
	}

	member, err := h.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(ctx, conversationID, userID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create message"})
		return
	}

	logIgnored(h.limiter.Increment(ctx, userID, ratelimit.KindMessage), "rate limit increment")

	participants, err := h.convRepo.ParticipantIDs(ctx, conversationID)
	if err != nil {
		logIgnored(err, "participant lookup for receipts")
	} else {
		recipients := lo.Filter(participants, func(id int64, _ int) bool { return id != userID })
		logIgnored(h.receipts.CreatePendingReceipts(ctx, msg.ID, recipients), "pending receipt creation")
	}

	h.broadcaster.MessageNew(ctx, msg)

	c.JSON(http.StatusCreated, gin.H{"message": msg, "messages_remaining": status.MessagesRemaining - 1})
}

// EditMessage updates content and broadcasts the edit.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	msg, err := h.messageRepo.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}

	h.broadcaster.MessageEdited(c.Request.Context(), msg)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage marks a message deleted and broadcasts the deletion.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt64("userID")
	msg, err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}

	h.broadcaster.MessageDeleted(c.Request.Context(), msg)
	c.JSON(http.StatusOK, gin.H{"message_id": messageID})
}

// ListMessages returns recent conversation history. Reconnecting clients use
// this to recover anything missed while offline.
func (h *MessageHandler) ListMessages(c *gin.Context) {
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

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conversationID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListReceipts returns per-recipient delivery/read state for a message. Only
// conversation members may see it.
func (h *MessageHandler) ListReceipts(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}

	member, err := h.convRepo.IsParticipant(ctx, msg.ConversationID, c.GetInt64("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	list, err := h.receipts.ListReceipts(ctx, messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": list})
}

// MarkDelivered records a client delivery acknowledgement for one message.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt64("userID")
	if err := h.receipts.MarkDelivered(c.Request.Context(), messageID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark delivered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
