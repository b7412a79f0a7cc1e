package postgres

import (
	"context"
	"fmt"

	"github.com/hatchnet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends a message; id and created_at come back from the store so the
// timestamp is assigned exactly once, at persistence time.
func (r *MessageRepository) Insert(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO room_messages (room_id, sender, content)
		VALUES ($1, $2, $3)
		RETURNING id, room_id, sender, content, created_at
	`, roomID, sender, content)

	var m domain.Message
	if err := row.Scan(&m.ID, &m.RoomID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByRoom returns every message of a room, oldest first. This is the
// replay snapshot pushed to a connection right after it joins.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, sender, content, created_at
		FROM room_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Page returns one page of a room's messages, newest first, with cursor
// pagination (created_at,id DESC) for the REST surface.
func (r *MessageRepository) Page(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const q = `
		SELECT id, room_id, sender, content, created_at
		FROM room_messages
		WHERE room_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, q, roomID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
