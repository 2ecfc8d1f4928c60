package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gochat/internal/chat/models"
)

var (
	// ErrNotFound is returned when a conversation lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits the conversation pair unique key.
	ErrDuplicate = errors.New("duplicate record")
)

//go:generate mockgen -destination=mocks/mock_chat_repository.go -package=mocks gochat/internal/chat/repository ChatRepository

// ChatRepository is the conversation and message store. Implementations must
// enforce a unique key on the canonical participant pair and return
// ErrDuplicate when an insert violates it.
type ChatRepository interface {
	FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error

	// Save assigns msg.ID and msg.CreatedAt. Within a conversation CreatedAt
	// never decreases as ID grows. A missing conversation returns ErrNotFound.
	Save(ctx context.Context, msg *models.Message) error
	FetchHistory(ctx context.Context, conversationID string) ([]*models.Message, error)

	Ping(ctx context.Context) error
}

type chatRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db, now: time.Now}
}

func (r *chatRepo) FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("(participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?)",
			userA, userB, userB, userA).
		Order("created_at ASC").
		Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepo) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	err := r.db.WithContext(ctx).Create(conv).Error
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (r *chatRepo) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// TouchConversation moves updated_at forward only, so racing sends never rewind it.
func (r *chatRepo) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND updated_at < ?", conversationID, at).
		UpdateColumn("updated_at", at).Error
}

// Save locks the conversation row so sends to one conversation are
// serialized, then stamps the message no earlier than the latest one already
// stored. Auto-increment ids are handed out under the same lock.
func (r *chatRepo) Save(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.ConversationID).
			Take(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var last sql.NullTime
		err = tx.Model(&models.Message{}).
			Select("MAX(created_at)").
			Where("conversation_id = ?", msg.ConversationID).
			Row().Scan(&last)
		if err != nil {
			return err
		}

		msg.CreatedAt = stampAfter(r.now(), last)
		return tx.Create(msg).Error
	})
}

// stampAfter truncates to the millisecond precision the stores keep and
// never returns a time before last.
func stampAfter(now time.Time, last sql.NullTime) time.Time {
	at := now.UTC().Truncate(time.Millisecond)
	if last.Valid && at.Before(last.Time) {
		return last.Time.UTC()
	}
	return at
}

func (r *chatRepo) FetchHistory(ctx context.Context, conversationID string) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *chatRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
