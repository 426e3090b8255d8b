package services

import (
	"time"

	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"

	"github.com/google/uuid"
)

// MessageWithSender pairs a persisted message with its sender's profile
// summary for rendering.
type MessageWithSender struct {
	conversation.Message
	Sender user.User
}

// LastMessage is the preview line shown in conversation listings.
type LastMessage struct {
	Text            string
	Sender          string
	Timestamp       time.Time
	IsSystemMessage bool
}

// DirectConversationSummary is one row of the caller's direct-chat listing.
type DirectConversationSummary struct {
	ID          uuid.UUID
	Other       user.User
	LastMessage *LastMessage
}

// GroupDetails is the full group projection returned by group operations.
type GroupDetails struct {
	ID               uuid.UUID
	Name             string
	IsAdmin          bool
	CreatedAt        time.Time
	Admin            user.User
	Participants     []user.User
	ParticipantCount int
	LastMessage      *LastMessage
}

// GroupMessages is the message-history projection for a group.
type GroupMessages struct {
	GroupID      uuid.UUID
	GroupName    string
	IsAdmin      bool
	Participants []user.User
	Messages     []MessageWithSender
}

// RemoveResult reports the outcome of a participant removal. Group is nil
// when the removal emptied the group and it was deleted.
type RemoveResult struct {
	GroupDeleted bool
	Group        *GroupDetails
}
