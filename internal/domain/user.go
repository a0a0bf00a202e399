package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the platform's user directory the messaging core reads.
// Accounts are owned and mutated by the main application, never here.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
