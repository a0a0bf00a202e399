package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/domain"
)

// ErrDuplicateConversation is returned by ConversationRepository.Create when a
// conversation for the same user pair already exists. The service treats it as
// "lost the creation race, look the winner up".
var ErrDuplicateConversation = errors.New("conversation already exists for this user pair")

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type ConversationRepository interface {
	// Create inserts the conversation and both participant links in one
	// transaction. Returns ErrDuplicateConversation if the pair is taken.
	Create(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByUsers(ctx context.Context, userLo, userHi uuid.UUID) (*domain.Conversation, error)
	ListSummaries(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error)
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error)
	SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error
	// Delete removes messages, participant links, then the conversation,
	// in that order, in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	// Create inserts the message and bumps the conversation's
	// last_message_at in the same transaction.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// List returns a skip/take page over descending created_at, reversed to
	// chronological order.
	List(ctx context.Context, conversationID uuid.UUID, skip, take int) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	// Delete removes the message and recomputes the conversation's
	// last_message_at from the remaining messages (falling back to the
	// conversation's created_at), in one transaction.
	Delete(ctx context.Context, msg *domain.Message) error
}
