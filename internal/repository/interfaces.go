package repository

import (
	"context"

	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	FindDirect(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error)
	ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)
	ListGroupsForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)
	Update(ctx context.Context, c *conversation.Conversation) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddParticipants(ctx context.Context, parts []conversation.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error

	AppendMessage(ctx context.Context, m *conversation.Message) error
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	GetLastMessage(ctx context.Context, conversationID uuid.UUID) (conversation.Message, error)
	GetMessage(ctx context.Context, messageID uuid.UUID) (conversation.Message, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}
