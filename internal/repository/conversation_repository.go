package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"linkup-chat/internal/domain/conversation"
	linkup_errors "linkup-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &GormConversationRepository{db: db}
}

func participantOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return linkup_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", participantOrder).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, linkup_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *GormConversationRepository) FindDirect(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	// Direct conversations hold exactly two participants, so requiring both
	// ids to be present identifies the pair regardless of argument order.
	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id IN ?", []uuid.UUID{userA, userB}).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := r.db.WithContext(ctx).
		Preload("Participants", participantOrder).
		Where("id IN (?) AND is_group = ?", subQuery, false).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, linkup_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *GormConversationRepository) ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	return r.listForUser(ctx, userID, false)
}

func (r *GormConversationRepository) ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	return r.listForUser(ctx, userID, true)
}

func (r *GormConversationRepository) listForUser(ctx context.Context, userID uuid.UUID, group bool) ([]conversation.Conversation, error) {
	var conversations []conversation.Conversation

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants", participantOrder).
		Where("id IN (?) AND is_group = ?", subQuery, group).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *GormConversationRepository) Update(ctx context.Context, c *conversation.Conversation) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{
			"group_name":     c.GroupName,
			"group_admin_id": c.GroupAdminID,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return linkup_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)

	msgSub := db.Model(&conversation.Message{}).
		Select("id").
		Where("conversation_id = ?", id)
	if err := db.Where("message_id IN (?)", msgSub).
		Delete(&conversation.MessageRead{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", id).
		Delete(&conversation.Message{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", id).
		Delete(&conversation.Participant{}).Error; err != nil {
		return err
	}

	res := db.Delete(&conversation.Conversation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return linkup_errors.ErrNotFound
	}
	return nil
}

func (r *GormConversationRepository) AddParticipants(ctx context.Context, parts []conversation.Participant) error {
	if len(parts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&parts).Error
}

func (r *GormConversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&conversation.Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return linkup_errors.ErrNotFound
	}
	return nil
}

// AppendMessage assigns the next per-conversation sequence number and inserts
// the message together with its read receipts.
func (r *GormConversationRepository) AppendMessage(ctx context.Context, m *conversation.Message) error {
	db := r.db.WithContext(ctx)

	var maxSeq sql.NullInt64
	err := db.Model(&conversation.Message{}).
		Where("conversation_id = ?", m.ConversationID).
		Select("MAX(seq)").
		Scan(&maxSeq).Error
	if err != nil {
		return err
	}
	m.Seq = maxSeq.Int64 + 1

	if err := db.Create(m).Error; err != nil {
		return err
	}

	// A new message bumps the conversation's updated_at so listings sort by
	// recent activity.
	return db.Model(&conversation.Conversation{}).
		Where("id = ?", m.ConversationID).
		Update("updated_at", time.Now()).Error
}

func (r *GormConversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error) {
	var messages []conversation.Message
	err := r.db.WithContext(ctx).
		Preload("ReadBy").
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *GormConversationRepository) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (conversation.Message, error) {
	var m conversation.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Message{}, linkup_errors.ErrNotFound
		}
		return conversation.Message{}, err
	}
	return m, nil
}

func (r *GormConversationRepository) GetMessage(ctx context.Context, messageID uuid.UUID) (conversation.Message, error) {
	var m conversation.Message
	err := r.db.WithContext(ctx).
		Preload("ReadBy").
		Where("id = ?", messageID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Message{}, linkup_errors.ErrNotFound
		}
		return conversation.Message{}, err
	}
	return m, nil
}

func (r *GormConversationRepository) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	db := r.db.WithContext(ctx)

	if err := db.Where("message_id = ?", messageID).
		Delete(&conversation.MessageRead{}).Error; err != nil {
		return err
	}

	res := db.Delete(&conversation.Message{}, "id = ?", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return linkup_errors.ErrNotFound
	}
	return nil
}

// MarkAllRead adds userID to the read set of every message in the
// conversation that does not contain it yet. Idempotent.
func (r *GormConversationRepository) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	db := r.db.WithContext(ctx)

	readSub := db.Model(&conversation.MessageRead{}).
		Select("message_id").
		Where("user_id = ?", userID)

	var unreadIDs []uuid.UUID
	err := db.Model(&conversation.Message{}).
		Where("conversation_id = ? AND id NOT IN (?)", conversationID, readSub).
		Pluck("id", &unreadIDs).Error
	if err != nil {
		return err
	}
	if len(unreadIDs) == 0 {
		return nil
	}

	reads := make([]conversation.MessageRead, 0, len(unreadIDs))
	for _, id := range unreadIDs {
		reads = append(reads, conversation.MessageRead{MessageID: id, UserID: userID})
	}
	return db.Create(&reads).Error
}
