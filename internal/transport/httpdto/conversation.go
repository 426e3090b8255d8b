package httpdto

import (
	"time"

	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"
	"linkup-chat/internal/services"
)

type SendMessageRequest struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Headline       string `json:"headline,omitempty"`
}

type MessageResponse struct {
	ID              string       `json:"_id"`
	ConversationID  string       `json:"conversationId"`
	Sender          UserResponse `json:"sender"`
	Content         string       `json:"content"`
	Timestamp       time.Time    `json:"timestamp"`
	IsSystemMessage bool         `json:"isSystemMessage"`
	ReadBy          []string     `json:"readBy"`
}

type LastMessageResponse struct {
	Text            string    `json:"text"`
	Sender          string    `json:"sender"`
	Timestamp       time.Time `json:"timestamp"`
	IsSystemMessage bool      `json:"isSystemMessage"`
}

type ConversationSummaryResponse struct {
	ID          string               `json:"_id"`
	Participant UserResponse         `json:"participant"`
	LastMessage *LastMessageResponse `json:"lastMessage,omitempty"`
}

func ToUserResponse(u user.User) UserResponse {
	return UserResponse{
		ID:             u.ID.String(),
		Name:           u.Name,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Headline:       u.Headline,
	}
}

func ToMessageResponse(m services.MessageWithSender) MessageResponse {
	return MessageResponse{
		ID:              m.ID.String(),
		ConversationID:  m.ConversationID.String(),
		Sender:          ToUserResponse(m.Sender),
		Content:         m.Content,
		Timestamp:       m.Timestamp,
		IsSystemMessage: m.IsSystemMessage,
		ReadBy:          readerIDs(m.ReadBy),
	}
}

func ToMessageResponses(msgs []services.MessageWithSender) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageResponse(m))
	}
	return out
}

func ToConversationSummaryResponse(s services.DirectConversationSummary) ConversationSummaryResponse {
	return ConversationSummaryResponse{
		ID:          s.ID.String(),
		Participant: ToUserResponse(s.Other),
		LastMessage: toLastMessageResponse(s.LastMessage),
	}
}

func toLastMessageResponse(lm *services.LastMessage) *LastMessageResponse {
	if lm == nil {
		return nil
	}
	return &LastMessageResponse{
		Text:            lm.Text,
		Sender:          lm.Sender,
		Timestamp:       lm.Timestamp,
		IsSystemMessage: lm.IsSystemMessage,
	}
}

func readerIDs(reads []conversation.MessageRead) []string {
	out := make([]string, 0, len(reads))
	for _, r := range reads {
		out = append(out, r.UserID.String())
	}
	return out
}
