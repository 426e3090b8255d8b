package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. A direct conversation
// holds exactly two participants and no group fields; a group conversation
// carries a name and an admin who must be one of the participants.
type Conversation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsGroup      bool
	GroupName    sql.NullString
	GroupAdminID uuid.NullUUID
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
	Messages     []Message     `gorm:"foreignKey:ConversationID"`
}

// Participant represents the participants table. Position records insertion
// order within the conversation; admin reassignment picks the lowest
// remaining position.
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position       int
	JoinedAt       time.Time
}

// Message represents the messages table. Seq is the append order within the
// owning conversation, assigned at insert time.
type Message struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID  uuid.UUID `gorm:"type:uuid;index"`
	SenderID        uuid.UUID `gorm:"type:uuid"`
	Content         string
	Seq             int64
	Timestamp       time.Time
	IsSystemMessage bool

	// Relationships
	ReadBy []MessageRead `gorm:"foreignKey:MessageID"`
}

// MessageRead represents the message_reads table: one row per user who has
// observed a message.
type MessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (Message) TableName() string {
	return "messages"
}

func (MessageRead) TableName() string {
	return "message_reads"
}

// HasParticipant reports whether userID is currently a member.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the member ids in insertion order.
func (c *Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// IsAdmin reports whether userID is the group admin.
func (c *Conversation) IsAdmin(userID uuid.UUID) bool {
	return c.GroupAdminID.Valid && c.GroupAdminID.UUID == userID
}
