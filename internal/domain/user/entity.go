package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents the users table. The wider application owns profile CRUD;
// the messaging core only reads this table to validate participant lists and
// render sender summaries.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string
	Username       string `gorm:"uniqueIndex"`
	ProfilePicture string
	Headline       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (User) TableName() string {
	return "users"
}
