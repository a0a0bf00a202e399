package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/domain"
	"github.com/okuznetsov/bookline/internal/repository"
)

// fakeDB is shared in-memory state behind the three repository fakes. It
// mirrors the store semantics the postgres repos implement in SQL, including
// the unique-pair constraint and the last_message_at bookkeeping.
type fakeDB struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	convs map[uuid.UUID]*domain.Conversation
	pairs map[[2]uuid.UUID]uuid.UUID
	parts map[uuid.UUID]map[uuid.UUID]*domain.Participant
	msgs  map[uuid.UUID]*domain.Message
}

func newFakeDB(users ...*domain.User) *fakeDB {
	db := &fakeDB{
		users: make(map[uuid.UUID]*domain.User),
		convs: make(map[uuid.UUID]*domain.Conversation),
		pairs: make(map[[2]uuid.UUID]uuid.UUID),
		parts: make(map[uuid.UUID]map[uuid.UUID]*domain.Participant),
		msgs:  make(map[uuid.UUID]*domain.Message),
	}
	for _, u := range users {
		db.users[u.ID] = u
	}
	return db
}

type fakeUserRepo struct{ db *fakeDB }

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type fakeConversationRepo struct{ db *fakeDB }

func (r *fakeConversationRepo) Create(_ context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := [2]uuid.UUID{conv.UserLo, conv.UserHi}
	if _, exists := r.db.pairs[key]; exists {
		return repository.ErrDuplicateConversation
	}

	cp := *conv
	r.db.convs[conv.ID] = &cp
	r.db.pairs[key] = conv.ID
	r.db.parts[conv.ID] = make(map[uuid.UUID]*domain.Participant)
	for _, p := range participants {
		pcp := p
		r.db.parts[conv.ID][p.UserID] = &pcp
	}
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	conv, ok := r.db.convs[id]
	if !ok {
		return nil, nil
	}
	cp := *conv
	return &cp, nil
}

func (r *fakeConversationRepo) GetByUsers(_ context.Context, userLo, userHi uuid.UUID) (*domain.Conversation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	id, ok := r.db.pairs[[2]uuid.UUID{userLo, userHi}]
	if !ok {
		return nil, nil
	}
	cp := *r.db.convs[id]
	return &cp, nil
}

func (r *fakeConversationRepo) ListSummaries(_ context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var summaries []domain.ConversationSummary
	for _, conv := range r.db.convs {
		if !conv.HasParticipant(userID) {
			continue
		}
		otherID := conv.OtherParticipant(userID)
		other := r.db.users[otherID]

		s := domain.ConversationSummary{
			ID:            conv.ID,
			CreatedAt:     conv.CreatedAt,
			LastMessageAt: conv.LastMessageAt,
			OtherUserID:   otherID,
		}
		if other != nil {
			s.OtherUsername = other.Username
			s.OtherAvatarURL = other.AvatarURL
		}

		p := r.db.parts[conv.ID][userID]
		var latest *domain.Message
		for _, m := range r.db.msgs {
			if m.ConversationID != conv.ID {
				continue
			}
			if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
				latest = m
			}
			if m.SenderID != userID && (p.LastReadAt == nil || m.CreatedAt.After(*p.LastReadAt)) {
				s.UnreadCount++
			}
		}
		if latest != nil {
			s.LastMessageID = &latest.ID
			s.LastMessageContent = &latest.Content
			s.LastMessageSenderID = &latest.SenderID
			s.LastMessageSentAt = &latest.CreatedAt
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

func (r *fakeConversationRepo) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.parts[conversationID][userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeConversationRepo) SetLastRead(_ context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.parts[conversationID][userID]; ok {
		t := readAt
		p.LastReadAt = &t
	}
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for msgID, m := range r.db.msgs {
		if m.ConversationID == id {
			delete(r.db.msgs, msgID)
		}
	}
	delete(r.db.parts, id)
	if conv, ok := r.db.convs[id]; ok {
		delete(r.db.pairs, [2]uuid.UUID{conv.UserLo, conv.UserHi})
		delete(r.db.convs, id)
	}
	return nil
}

type fakeMessageRepo struct{ db *fakeDB }

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cp := *msg
	r.db.msgs[msg.ID] = &cp
	if conv, ok := r.db.convs[msg.ConversationID]; ok {
		conv.LastMessageAt = msg.CreatedAt
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.msgs[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	if u, ok := r.db.users[m.SenderID]; ok {
		cp.SenderUsername = u.Username
	}
	return &cp, nil
}

func (r *fakeMessageRepo) List(_ context.Context, conversationID uuid.UUID, skip, take int) ([]domain.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var all []domain.Message
	for _, m := range r.db.msgs {
		if m.ConversationID == conversationID {
			cp := *m
			if u, ok := r.db.users[m.SenderID]; ok {
				cp.SenderUsername = u.Username
			}
			all = append(all, cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if take < len(all) {
		all = all[:take]
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (r *fakeMessageRepo) Update(_ context.Context, msg *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if m, ok := r.db.msgs[msg.ID]; ok {
		m.Content = msg.Content
		now := time.Now()
		m.EditedAt = &now
	}
	return nil
}

func (r *fakeMessageRepo) Delete(_ context.Context, msg *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.msgs, msg.ID)

	conv, ok := r.db.convs[msg.ConversationID]
	if !ok {
		return nil
	}
	conv.LastMessageAt = conv.CreatedAt
	for _, m := range r.db.msgs {
		if m.ConversationID == conv.ID && m.CreatedAt.After(conv.LastMessageAt) {
			conv.LastMessageAt = m.CreatedAt
		}
	}
	return nil
}

// notified records delivery events handed to the notifier.
type notified struct {
	eventType      string
	userIDs        []uuid.UUID
	messageID      uuid.UUID
	conversationID uuid.UUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *recordingNotifier) NotifyMessageReceived(userIDs []uuid.UUID, msg *domain.Message) {
	n.record("message.received", userIDs, msg.ID, msg.ConversationID)
}

func (n *recordingNotifier) NotifyMessageEdited(userIDs []uuid.UUID, msg *domain.Message) {
	n.record("message.edited", userIDs, msg.ID, msg.ConversationID)
}

func (n *recordingNotifier) NotifyMessageDeleted(userIDs []uuid.UUID, conversationID, messageID uuid.UUID) {
	n.record("message.deleted", userIDs, messageID, conversationID)
}

func (n *recordingNotifier) record(eventType string, userIDs []uuid.UUID, messageID, conversationID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{
		eventType:      eventType,
		userIDs:        append([]uuid.UUID(nil), userIDs...),
		messageID:      messageID,
		conversationID: conversationID,
	})
}

func (n *recordingNotifier) byType(eventType string) []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notified
	for _, e := range n.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
