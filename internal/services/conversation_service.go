package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"linkup-chat/internal/delivery"
	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"
	"linkup-chat/internal/events"
	"linkup-chat/internal/repository"
	linkup_errors "linkup-chat/pkg/errors"
	"linkup-chat/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationService owns direct (two-participant) conversations: lazy
// creation on first send, history with read-tracking, listing, and message
// deletion.
type ConversationService struct {
	db       *gorm.DB
	convs    repository.ConversationRepository
	users    repository.UserRepository
	delivery *delivery.Engine
	log      *logger.Logger
}

func NewConversationService(db *gorm.DB, convs repository.ConversationRepository, users repository.UserRepository, engine *delivery.Engine, log *logger.Logger) *ConversationService {
	return &ConversationService{db: db, convs: convs, users: users, delivery: engine, log: log}
}

// SendDirectMessage persists a message from sender to receiver, creating the
// direct conversation on first contact, then pushes a newMessage event to the
// receiver's live connection if one exists.
//
// The find-or-create sequence is not atomic: two concurrent first-contact
// sends between the same pair can each create a conversation. Known race,
// accepted.
func (s *ConversationService) SendDirectMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (MessageWithSender, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return MessageWithSender{}, linkup_errors.ErrInvalidInput
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return MessageWithSender{}, err
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return MessageWithSender{}, err
	}

	var msg conversation.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)

		conv, err := repo.FindDirect(ctx, senderID, receiverID)
		if errors.Is(err, linkup_errors.ErrNotFound) {
			now := time.Now()
			conv = conversation.Conversation{
				ID: uuid.New(),
				Participants: []conversation.Participant{
					{UserID: senderID, Position: 0, JoinedAt: now},
					{UserID: receiverID, Position: 1, JoinedAt: now},
				},
			}
			if err := repo.Create(ctx, &conv); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		msg = newUserMessage(conv.ID, senderID, content)
		return repo.AppendMessage(ctx, &msg)
	})
	if err != nil {
		return MessageWithSender{}, err
	}

	// Persist-then-notify: the push happens only after the transaction
	// committed.
	s.delivery.Push(receiverID, events.TypeNewMessage, events.MessageEvent{
		ConversationID: msg.ConversationID.String(),
		Message:        messageBody(msg),
		Sender:         userSummary(sender),
	})

	return MessageWithSender{Message: msg, Sender: sender}, nil
}

// GetDirectMessages returns the ordered history between the caller and the
// other user, marking every returned message as read by the caller. No
// conversation yet yields an empty list, not an error.
func (s *ConversationService) GetDirectMessages(ctx context.Context, userID, otherID uuid.UUID) ([]MessageWithSender, error) {
	conv, err := s.convs.FindDirect(ctx, userID, otherID)
	if errors.Is(err, linkup_errors.ErrNotFound) {
		return []MessageWithSender{}, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []conversation.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.MarkAllRead(ctx, conv.ID, userID); err != nil {
			return err
		}
		msgs, err = repo.GetMessages(ctx, conv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.withSenders(ctx, msgs)
}

// ListConversations returns the caller's direct conversations, most recently
// active first, each with the other participant's summary and the last
// message.
func (s *ConversationService) ListConversations(ctx context.Context, userID uuid.UUID) ([]DirectConversationSummary, error) {
	convs, err := s.convs.ListDirectForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]DirectConversationSummary, 0, len(convs))
	for _, conv := range convs {
		var otherID uuid.UUID
		for _, p := range conv.Participants {
			if p.UserID != userID {
				otherID = p.UserID
				break
			}
		}
		other, err := s.users.GetByID(ctx, otherID)
		if err != nil && !errors.Is(err, linkup_errors.ErrNotFound) {
			return nil, err
		}

		last, err := s.lastMessage(ctx, conv.ID)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, DirectConversationSummary{
			ID:          conv.ID,
			Other:       other,
			LastMessage: last,
		})
	}
	return summaries, nil
}

// DeleteMessage removes a message from its owning conversation. Only the
// original sender may delete it, and only participants can see it exists.
func (s *ConversationService) DeleteMessage(ctx context.Context, requesterID, messageID uuid.UUID) error {
	msg, err := s.convs.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.convs.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(requesterID) {
		return linkup_errors.ErrNotFound
	}
	if msg.SenderID != requesterID {
		return linkup_errors.ErrForbidden
	}
	return s.convs.DeleteMessage(ctx, messageID)
}

func (s *ConversationService) lastMessage(ctx context.Context, conversationID uuid.UUID) (*LastMessage, error) {
	msg, err := s.convs.GetLastMessage(ctx, conversationID)
	if errors.Is(err, linkup_errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	senderName := "Unknown"
	if sender, err := s.users.GetByID(ctx, msg.SenderID); err == nil {
		senderName = sender.Name
	}
	return &LastMessage{
		Text:            msg.Content,
		Sender:          senderName,
		Timestamp:       msg.Timestamp,
		IsSystemMessage: msg.IsSystemMessage,
	}, nil
}

func (s *ConversationService) withSenders(ctx context.Context, msgs []conversation.Message) ([]MessageWithSender, error) {
	return attachSenders(ctx, s.users, msgs)
}

// newUserMessage builds a user-authored message with the sender in its read
// set.
func newUserMessage(conversationID, senderID uuid.UUID, content string) conversation.Message {
	id := uuid.New()
	return conversation.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now(),
		ReadBy:         []conversation.MessageRead{{MessageID: id, UserID: senderID}},
	}
}

// attachSenders resolves sender summaries for a message list in one lookup.
func attachSenders(ctx context.Context, users repository.UserRepository, msgs []conversation.Message) ([]MessageWithSender, error) {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}

	senders, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]user.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	out := make([]MessageWithSender, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageWithSender{Message: m, Sender: byID[m.SenderID]})
	}
	return out, nil
}

func messageBody(m conversation.Message) events.MessageBody {
	return events.MessageBody{
		ID:              m.ID.String(),
		SenderID:        m.SenderID.String(),
		Content:         m.Content,
		Timestamp:       m.Timestamp,
		IsSystemMessage: m.IsSystemMessage,
	}
}

func userSummary(u user.User) events.UserSummary {
	return events.UserSummary{
		ID:             u.ID.String(),
		Name:           u.Name,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Headline:       u.Headline,
	}
}
