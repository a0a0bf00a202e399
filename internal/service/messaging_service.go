package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/domain"
	"github.com/okuznetsov/bookline/internal/repository"
)

// Invalid-operation errors
var (
	ErrSelfMessage  = errors.New("cannot start a conversation with yourself")
	ErrEmptyMessage = errors.New("message content is empty")
)

// Not-found errors
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Forbidden errors
var (
	ErrNotParticipant   = errors.New("you are not a participant of this conversation")
	ErrNotMessageSender = errors.New("only the message sender can perform this action")
)

const defaultPageSize = 50

// Notifier pushes delivery events to the live connections of the given users.
// Delivery is best-effort and must never fail the originating write.
type Notifier interface {
	NotifyMessageReceived(userIDs []uuid.UUID, msg *domain.Message)
	NotifyMessageEdited(userIDs []uuid.UUID, msg *domain.Message)
	NotifyMessageDeleted(userIDs []uuid.UUID, conversationID, messageID uuid.UUID)
}

// MessagingService orchestrates conversation discovery/creation, message
// send/edit/delete, read markers, and real-time delivery.
type MessagingService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	notifier Notifier
}

func NewMessagingService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *MessagingService {
	return &MessagingService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessagingService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SendDirectMessage sends a message to another user, lazily creating the
// conversation on first contact.
func (s *MessagingService) SendDirectMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrUserNotFound
	}

	conv, err := s.getOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	return s.persistAndNotify(ctx, conv, senderID, content)
}

// SendMessage sends a message into an existing conversation.
func (s *MessagingService) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := s.requireParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	return s.persistAndNotify(ctx, conv, userID, content)
}

// ListConversations returns the caller's conversations, newest activity first,
// each with the other participant, the latest message, and an unread count.
func (s *MessagingService) ListConversations(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	summaries, err := s.convRepo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []domain.ConversationSummary{}
	}
	return summaries, nil
}

// ListMessages returns a skip/take page of a conversation's messages in
// chronological order. Pages are cut over descending created_at, so skip=0
// is the most recent page.
func (s *MessagingService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, skip, take int) ([]domain.Message, error) {
	if _, err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultPageSize
	}

	messages, err := s.msgRepo.List(ctx, conversationID, skip, take)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// MarkConversationRead moves the caller's read marker to now. Calling it
// repeatedly just moves the marker forward.
func (s *MessagingService) MarkConversationRead(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	p, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNotParticipant
	}
	return s.convRepo.SetLastRead(ctx, conversationID, userID, time.Now())
}

// EditMessage replaces a message's content in place. created_at is unchanged.
func (s *MessagingService) EditMessage(ctx context.Context, userID, messageID uuid.UUID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.requireSender(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	// Re-sending the same text is a no-op: no row change, no event
	if msg.Content == content {
		return msg, nil
	}

	msg.Content = content
	if err := s.msgRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	updated, err := s.msgRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if conv, err := s.convRepo.GetByID(ctx, msg.ConversationID); err == nil && conv != nil {
			s.notifier.NotifyMessageEdited(conv.Participants(), updated)
		}
	}

	return updated, nil
}

// DeleteMessage removes a message for good and reconciles the conversation's
// last_message_at.
func (s *MessagingService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.requireSender(ctx, userID, messageID)
	if err != nil {
		return err
	}

	if err := s.msgRepo.Delete(ctx, msg); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	if s.notifier != nil {
		if conv, err := s.convRepo.GetByID(ctx, msg.ConversationID); err == nil && conv != nil {
			s.notifier.NotifyMessageDeleted(conv.Participants(), msg.ConversationID, messageID)
		}
	}

	return nil
}

// DeleteConversation removes the conversation, its participant links and all
// of its messages, for both participants. The other participant gets no
// event; the thread is simply gone on their next fetch.
func (s *MessagingService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	if _, err := s.requireParticipant(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.convRepo.Delete(ctx, conversationID)
}

// GetConversation returns the conversation if the caller participates in it.
func (s *MessagingService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	return s.requireParticipant(ctx, userID, conversationID)
}

// getOrCreateConversation finds the pair's conversation or creates it along
// with both participant links. Two callers racing to create the same pair are
// resolved by the unique index on the canonical pair: the loser re-reads the
// winner's row.
func (s *MessagingService) getOrCreateConversation(ctx context.Context, senderID, recipientID uuid.UUID) (*domain.Conversation, error) {
	lo, hi := domain.CanonicalPair(senderID, recipientID)

	conv, err := s.convRepo.GetByUsers(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	now := time.Now()
	conv = &domain.Conversation{
		ID:            uuid.New(),
		UserLo:        lo,
		UserHi:        hi,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	participants := []domain.Participant{
		{ConversationID: conv.ID, UserID: senderID, LastReadAt: &now},
		{ConversationID: conv.ID, UserID: recipientID, LastReadAt: nil},
	}

	err = s.convRepo.Create(ctx, conv, participants)
	if errors.Is(err, repository.ErrDuplicateConversation) {
		conv, err = s.convRepo.GetByUsers(ctx, lo, hi)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	return conv, nil
}

func (s *MessagingService) persistAndNotify(ctx context.Context, conv *domain.Conversation, senderID uuid.UUID, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	full, err := s.msgRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMessageReceived(conv.Participants(), full)
	}

	return full, nil
}

func (s *MessagingService) requireParticipant(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *MessagingService) requireSender(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageSender
	}
	return msg, nil
}
