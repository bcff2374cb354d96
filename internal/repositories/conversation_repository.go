package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"realtime-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence. The realtime core
// consumes it for participant resolution and subscribe-time authorization.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, creatorID int64, participantIDs []int64, title string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	CounterpartyIDs(ctx context.Context, userID int64) ([]int64, error)
	ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateConversation creates a conversation and its participant rows. The
// creator is always a participant.
func (r *ConversationRepo) CreateConversation(ctx context.Context, creatorID int64, participantIDs []int64, title string) (models.Conversation, error) {
	members := lo.Uniq(append([]int64{creatorID}, participantIDs...))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (title, creator_id) VALUES ($1, $2) RETURNING id, title, creator_id, created_at`, title, creatorID).
		Scan(&conv.ID, &conv.Title, &conv.CreatorID, &conv.CreatedAt)
	if err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, title, creator_id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`, conversationID, userID)
	return exists, err
}

// ParticipantIDs returns the user ids of every participant in the conversation.
func (r *ConversationRepo) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM conversation_participants WHERE conversation_id=$1`, conversationID)
	return ids, err
}

// CounterpartyIDs returns every distinct user who shares a conversation with
// the given user, excluding the user themselves. Presence changes are
// broadcast to this set.
func (r *ConversationRepo) CounterpartyIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT cp.user_id FROM conversation_participants cp
        WHERE cp.user_id <> $1
        AND cp.conversation_id IN (SELECT conversation_id FROM conversation_participants WHERE user_id=$1)`
	err := r.db.SelectContext(ctx, &ids, query, userID)
	return ids, err
}

// ListConversations returns the conversations the user participates in.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	var convs []models.Conversation
	query := `SELECT c.id, c.title, c.creator_id, c.created_at FROM conversations c
        JOIN conversation_participants cp ON cp.conversation_id = c.id
        WHERE cp.user_id=$1
        ORDER BY c.created_at DESC`
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}
