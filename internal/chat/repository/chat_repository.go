package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

// MessageRepository is the flat message store. Every failure of the
// underlying database classifies as common.ErrPersistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *dbmysql.Message) error
	FindByID(ctx context.Context, messageID string) (*dbmysql.Message, error)
	FindByPair(ctx context.Context, userA, userB string) ([]*dbmysql.Message, error)
	ListByParticipant(ctx context.Context, userID string) ([]*dbmysql.Message, error)
	Delete(ctx context.Context, messageID string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByImagePath(ctx context.Context, imagePath string) (int64, error)
}

const chronological = "created_at ASC, id ASC"

type messageRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *messageRepo) Create(ctx context.Context, msg *dbmysql.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return common.Persistence("create message", err)
	}
	return nil
}

func (r *messageRepo) FindByID(ctx context.Context, messageID string) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
	}
	if err != nil {
		return nil, common.Persistence("find message", err)
	}
	return &msg, nil
}

// FindByPair returns the whole history between two users in either slot
// order, oldest first.
func (r *messageRepo) FindByPair(ctx context.Context, userA, userB string) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("(participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?)",
			userA, userB, userB, userA).
		Order(chronological).
		Find(&messages).Error
	if err != nil {
		return nil, common.Persistence("fetch history", err)
	}
	return messages, nil
}

func (r *messageRepo) ListByParticipant(ctx context.Context, userID string) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order(chronological).
		Find(&messages).Error
	if err != nil {
		return nil, common.Persistence("list messages", err)
	}
	return messages, nil
}

// Delete removes the record only. Attached media is the caller's concern.
func (r *messageRepo) Delete(ctx context.Context, messageID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("message_id = ?", messageID).Delete(&dbmysql.Message{})
	if res.Error != nil {
		return false, common.Persistence("delete message", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&dbmysql.Message{}).Count(&n).Error; err != nil {
		return 0, common.Persistence("count messages", err)
	}
	return n, nil
}

// CountByImagePath reports how many stored messages reference an attachment.
func (r *messageRepo) CountByImagePath(ctx context.Context, imagePath string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&dbmysql.Message{}).Where("image_path = ?", imagePath).Count(&n).Error
	if err != nil {
		return 0, common.Persistence("count attachment references", err)
	}
	return n, nil
}
