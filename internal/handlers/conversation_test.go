package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/presence"
	"realtime-service/internal/ratelimit"
	"realtime-service/internal/typing"
)

type staticTypingStore struct {
	indicators []models.TypingIndicator
}

func (s *staticTypingStore) Set(context.Context, models.TypingIndicator, time.Duration) error {
	return nil
}

func (s *staticTypingStore) Delete(context.Context, int64, int64) error { return nil }

func (s *staticTypingStore) List(context.Context, int64) ([]models.TypingIndicator, error) {
	return s.indicators, nil
}

type conversationTestEnv struct {
	router      *gin.Engine
	convRepo    *mocks.ConversationRepositoryMock
	userRepo    *mocks.UserRepositoryMock
	limiter     *mocks.LimiterMock
	typingStore *staticTypingStore
}

func newConversationTestEnv(userID int64) *conversationTestEnv {
	gin.SetMode(gin.TestMode)

	env := &conversationTestEnv{
		convRepo:    new(mocks.ConversationRepositoryMock),
		userRepo:    new(mocks.UserRepositoryMock),
		limiter:     new(mocks.LimiterMock),
		typingStore: &staticTypingStore{},
	}

	eventBus := new(mocks.EventBusMock)
	presenceTracker := presence.NewTracker(nil, env.userRepo, env.convRepo, eventBus, time.Minute)
	typingTracker := typing.NewTracker(env.typingStore, env.userRepo, env.convRepo, eventBus, 5*time.Second)
	handler := NewConversationHandler(env.convRepo, env.limiter, presenceTracker, typingTracker)

	env.router = gin.New()
	env.router.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	env.router.POST("/conversations", handler.CreateConversation)
	env.router.GET("/conversations", handler.ListConversations)
	env.router.GET("/conversations/:conversation_id", handler.GetConversation)
	env.router.GET("/rate-limit", handler.GetRateLimit)
	env.router.GET("/presence", handler.GetBulkPresence)
	env.router.GET("/conversations/:conversation_id/typing", handler.GetTypingUsers)
	return env
}

func (env *conversationTestEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateConversationSuccess(t *testing.T) {
	env := newConversationTestEnv(1)
	conv := models.Conversation{ID: 7, Title: "run club"}

	env.limiter.On("Check", mock.Anything, int64(1)).Return(okStatus(), nil)
	env.convRepo.On("CreateConversation", mock.Anything, int64(1), []int64{2, 3}, "run club").Return(conv, nil)
	env.limiter.On("Increment", mock.Anything, int64(1), ratelimit.KindConversation).Return(nil)

	recorder := env.do(http.MethodPost, "/conversations", gin.H{"participant_ids": []int64{2, 3}, "title": "run club"})

	assert.Equal(t, http.StatusCreated, recorder.Code)
	env.convRepo.AssertExpectations(t)
	env.limiter.AssertExpectations(t)
}

func TestCreateConversationDailyLimitExhausted(t *testing.T) {
	env := newConversationTestEnv(1)

	env.limiter.On("Check", mock.Anything, int64(1)).
		Return(models.RateLimitStatus{MessagesRemaining: 10, ConversationsRemaining: 0, ResetAt: time.Now()}, nil)

	recorder := env.do(http.MethodPost, "/conversations", gin.H{"participant_ids": []int64{2}})

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	env.convRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetConversationRequiresMembership(t *testing.T) {
	env := newConversationTestEnv(1)

	env.convRepo.On("IsParticipant", mock.Anything, int64(7), int64(1)).Return(false, nil)

	recorder := env.do(http.MethodGet, "/conversations/7", nil)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	env.convRepo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestGetConversationReturnsThread(t *testing.T) {
	env := newConversationTestEnv(1)

	env.convRepo.On("IsParticipant", mock.Anything, int64(7), int64(1)).Return(true, nil)
	env.convRepo.On("GetConversation", mock.Anything, int64(7)).
		Return(models.Conversation{ID: 7, Title: "run club"}, nil)

	recorder := env.do(http.MethodGet, "/conversations/7", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"run club"`)
}

func TestGetRateLimitReportsBudget(t *testing.T) {
	env := newConversationTestEnv(1)
	status := models.RateLimitStatus{
		MessagesRemaining:      4,
		ConversationsRemaining: 1,
		ResetAt:                time.Now().Add(time.Minute).UTC().Truncate(time.Second),
	}

	env.limiter.On("Check", mock.Anything, int64(1)).Return(status, nil)

	recorder := env.do(http.MethodGet, "/rate-limit", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var resp models.RateLimitStatus
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.MessagesRemaining)
	assert.Equal(t, 1, resp.ConversationsRemaining)
}

func TestGetBulkPresenceParsesIDList(t *testing.T) {
	env := newConversationTestEnv(1)
	now := time.Now()

	env.userRepo.On("BulkLastActive", mock.Anything, []int64{2, 3}).
		Return(map[int64]time.Time{2: now, 3: now.Add(-10 * time.Minute)}, nil)

	recorder := env.do(http.MethodGet, "/presence?user_ids=2,%203", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Presence map[string]models.UserPresence `json:"presence"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, models.PresenceOnline, resp.Presence["2"].Status)
	assert.Equal(t, models.PresenceAway, resp.Presence["3"].Status)
}

func TestGetBulkPresenceRejectsBadInput(t *testing.T) {
	env := newConversationTestEnv(1)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/presence", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/presence?user_ids=2,x", nil).Code)
}

func TestGetTypingUsersRequiresMembership(t *testing.T) {
	env := newConversationTestEnv(1)

	env.convRepo.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(false, nil)

	recorder := env.do(http.MethodGet, "/conversations/10/typing", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestGetTypingUsersListsIndicators(t *testing.T) {
	env := newConversationTestEnv(1)
	env.typingStore.indicators = []models.TypingIndicator{{ConversationID: 10, UserID: 2, Username: "ira"}}

	env.convRepo.On("IsParticipant", mock.Anything, int64(10), int64(1)).Return(true, nil)

	recorder := env.do(http.MethodGet, "/conversations/10/typing", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Typing []models.TypingIndicator `json:"typing"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, resp.Typing, 1)
	assert.Equal(t, "ira", resp.Typing[0].Username)
}
