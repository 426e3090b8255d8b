package repository

import (
	"context"
	"testing"

	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.Message{},
		&conversation.MessageRead{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newDirectConversation(t *testing.T, repo ConversationRepository, a, b uuid.UUID) conversation.Conversation {
	t.Helper()
	conv := conversation.Conversation{
		ID: uuid.New(),
		Participants: []conversation.Participant{
			{UserID: a, Position: 0},
			{UserID: b, Position: 1},
		},
	}
	if err := repo.Create(context.Background(), &conv); err != nil {
		t.Fatalf("failed to create conversation: %v", err)
	}
	return conv
}

func appendMessage(t *testing.T, repo ConversationRepository, convID, senderID uuid.UUID, content string) conversation.Message {
	t.Helper()
	id := uuid.New()
	m := conversation.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		ReadBy:         []conversation.MessageRead{{MessageID: id, UserID: senderID}},
	}
	if err := repo.AppendMessage(context.Background(), &m); err != nil {
		t.Fatalf("failed to append message: %v", err)
	}
	return m
}
