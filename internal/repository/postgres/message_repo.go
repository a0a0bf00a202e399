package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okuznetsov/bookline/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET last_message_at = $1 WHERE id = $2`,
		msg.CreatedAt, msg.ConversationID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content,
			m.edited_at, m.created_at, u.username
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.id = $1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content,
		&msg.EditedAt, &msg.CreatedAt, &msg.SenderUsername,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &msg, err
}

func (r *MessageRepo) List(ctx context.Context, conversationID uuid.UUID, skip, take int) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content,
			m.edited_at, m.created_at, u.username
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, skip, take)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content,
			&msg.EditedAt, &msg.CreatedAt, &msg.SenderUsername,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3`,
		msg.Content, time.Now(), msg.ID,
	)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, msg *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, msg.ID); err != nil {
		return err
	}

	// Deleting the newest message moves last_message_at back to the
	// next-newest one, or to the conversation's created_at if none remain.
	query := `
		UPDATE conversations c
		SET last_message_at = COALESCE(
			(SELECT MAX(created_at) FROM messages WHERE conversation_id = c.id),
			c.created_at)
		WHERE c.id = $1`
	if _, err := tx.Exec(ctx, query, msg.ConversationID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
