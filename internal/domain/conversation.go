package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the unique 1:1 thread between two users. The pair is stored
// in canonical order (UserLo < UserHi by uuid byte order) so a single unique
// index can enforce "at most one conversation per pair".
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	UserLo        uuid.UUID `json:"-"`
	UserHi        uuid.UUID `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserLo == userID || c.UserHi == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserLo == userID {
		return c.UserHi
	}
	return c.UserLo
}

// Participants returns both participant ids.
func (c *Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.UserLo, c.UserHi}
}

// CanonicalPair orders two user ids so that lo < hi by uuid byte order.
func CanonicalPair(a, b uuid.UUID) (lo, hi uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// Participant is the per-user bookkeeping row inside a conversation,
// principally the read marker.
type Participant struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
}

// ConversationSummary is what the conversation list renders: the other
// participant, the latest message if any, and the caller's unread count.
type ConversationSummary struct {
	ID            uuid.UUID `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	// Other participant, joined from the user directory
	OtherUserID    uuid.UUID `json:"other_user_id"`
	OtherUsername  string    `json:"other_username"`
	OtherAvatarURL *string   `json:"other_avatar_url,omitempty"`
	// Latest message, if the conversation has any
	LastMessageID       *uuid.UUID `json:"last_message_id,omitempty"`
	LastMessageContent  *string    `json:"last_message_content,omitempty"`
	LastMessageSenderID *uuid.UUID `json:"last_message_sender_id,omitempty"`
	LastMessageSentAt   *time.Time `json:"last_message_sent_at,omitempty"`
	UnreadCount         int        `json:"unread_count"`
}
