package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
	"realtime-service/internal/ratelimit"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateConversation(ctx context.Context, creatorID int64, participantIDs []int64, title string) (models.Conversation, error) {
	args := m.Called(ctx, creatorID, participantIDs, title)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) CounterpartyIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID int64, senderID int64, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID int64, senderID int64, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int64, senderID int64) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUserInfo(ctx context.Context, userID int64) (models.UserInfo, error) {
	args := m.Called(ctx, userID)
	var info models.UserInfo
	if val := args.Get(0); val != nil {
		info = val.(models.UserInfo)
	}
	return info, args.Error(1)
}

func (m *UserRepositoryMock) BulkLastActive(ctx context.Context, userIDs []int64) (map[int64]time.Time, error) {
	args := m.Called(ctx, userIDs)
	var result map[int64]time.Time
	if val := args.Get(0); val != nil {
		result = val.(map[int64]time.Time)
	}
	return result, args.Error(1)
}

func (m *UserRepositoryMock) TouchLastActive(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type ReceiptRepositoryMock struct {
	mock.Mock
}

func (m *ReceiptRepositoryMock) CreatePendingReceipts(ctx context.Context, messageID int64, participantIDs []int64) error {
	args := m.Called(ctx, messageID, participantIDs)
	return args.Error(0)
}

func (m *ReceiptRepositoryMock) MarkDelivered(ctx context.Context, messageID int64, userID int64) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *ReceiptRepositoryMock) MarkReadBulk(ctx context.Context, conversationID int64, userID int64) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReceiptRepositoryMock) ListReceipts(ctx context.Context, messageID int64) ([]models.MessageReceipt, error) {
	args := m.Called(ctx, messageID)
	var receipts []models.MessageReceipt
	if val := args.Get(0); val != nil {
		receipts = val.([]models.MessageReceipt)
	}
	return receipts, args.Error(1)
}

type LimiterMock struct {
	mock.Mock
}

func (m *LimiterMock) Check(ctx context.Context, userID int64) (models.RateLimitStatus, error) {
	args := m.Called(ctx, userID)
	var status models.RateLimitStatus
	if val := args.Get(0); val != nil {
		status = val.(models.RateLimitStatus)
	}
	return status, args.Error(1)
}

func (m *LimiterMock) Increment(ctx context.Context, userID int64, kind ratelimit.Kind) error {
	args := m.Called(ctx, userID, kind)
	return args.Error(0)
}

type EventBusMock struct {
	mock.Mock
}

func (m *EventBusMock) Publish(ctx context.Context, event models.Event, targetUserIDs []int64) error {
	args := m.Called(ctx, event, targetUserIDs)
	return args.Error(0)
}
