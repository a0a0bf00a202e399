package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okuznetsov/bookline/internal/domain"
	"github.com/okuznetsov/bookline/internal/repository"
)

const uniqueViolation = "23505"

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO conversations (id, user_lo, user_hi, created_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query,
		conv.ID, conv.UserLo, conv.UserHi, conv.CreatedAt, conv.LastMessageAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicateConversation
		}
		return err
	}

	for _, p := range participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, last_read_at) VALUES ($1, $2, $3)`,
			p.ConversationID, p.UserID, p.LastReadAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_lo, user_hi, created_at, last_message_at
		FROM conversations
		WHERE id = $1`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.UserLo, &conv.UserHi, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) GetByUsers(ctx context.Context, userLo, userHi uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_lo, user_hi, created_at, last_message_at
		FROM conversations
		WHERE user_lo = $1 AND user_hi = $2`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, userLo, userHi).Scan(
		&conv.ID, &conv.UserLo, &conv.UserHi, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &conv, err
}

func (r *ConversationRepo) ListSummaries(ctx context.Context, userID uuid.UUID) ([]domain.ConversationSummary, error) {
	query := `
		SELECT c.id, c.created_at, c.last_message_at,
			CASE WHEN c.user_lo = $1 THEN c.user_hi ELSE c.user_lo END AS other_user_id,
			u.username, u.avatar_url,
			lm.id, lm.content, lm.sender_id, lm.created_at,
			(SELECT COUNT(*) FROM messages m
				WHERE m.conversation_id = c.id
					AND m.sender_id <> $1
					AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)
			) AS unread_count
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		JOIN users u ON u.id = CASE WHEN c.user_lo = $1 THEN c.user_hi ELSE c.user_lo END
		LEFT JOIN LATERAL (
			SELECT id, content, sender_id, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) lm ON true
		ORDER BY c.last_message_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.ConversationSummary
	for rows.Next() {
		var s domain.ConversationSummary
		if err := rows.Scan(
			&s.ID, &s.CreatedAt, &s.LastMessageAt,
			&s.OtherUserID, &s.OtherUsername, &s.OtherAvatarURL,
			&s.LastMessageID, &s.LastMessageContent, &s.LastMessageSenderID, &s.LastMessageSentAt,
			&s.UnreadCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT conversation_id, user_id, last_read_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2`
	var p domain.Participant
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(
		&p.ConversationID, &p.UserID, &p.LastReadAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *ConversationRepo) SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_participants SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		readAt, conversationID, userID,
	)
	return err
}

func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Ordered so no orphaned rows survive a partial failure.
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM conversation_participants WHERE conversation_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
