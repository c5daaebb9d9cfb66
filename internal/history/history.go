package history

import (
	"context"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/pkg/database"
)

// Store persists per-conversation chat history. The router and agent only
// ever see a bounded window of it.
type Store struct {
	db database.PostgresConn
}

func NewStore(db database.PostgresConn) *Store {
	return &Store{db: db}
}

// Recent returns the latest messages for a conversation in chronological
// order.
func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content
		FROM hobi_chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []agent.Turn
	for rows.Next() {
		var turn agent.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Append records one message.
func (s *Store) Append(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hobi_chat_messages (conversation_id, role, content)
		VALUES ($1, $2, $3)`, conversationID, role, content)
	return err
}

// Clear removes a conversation's history.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM hobi_chat_messages WHERE conversation_id = $1`, conversationID)
	return err
}
