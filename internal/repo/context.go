package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tasktalk/internal/domain"
)

// Context store adapter: conversations, messages and the per-conversation
// dialogue-state slot.

func (r Repo) InsertConversation(ctx context.Context, c domain.Conversation) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO conversations(id,user_id,created_at,updated_at) VALUES (?,?,?,?)`,
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetConversation is scoped by user so one user can never load another's thread.
func (r Repo) GetConversation(ctx context.Context, userID, id string) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,created_at,updated_at FROM conversations WHERE id=? AND user_id=?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,created_at,updated_at FROM conversations WHERE user_id=? ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// AppendMessage writes one turn and bumps the conversation's updated_at in
// the same transaction. Messages are append-only.
func (r Repo) AppendMessage(ctx context.Context, tx *sql.Tx, conversationID, role, content, now string) (domain.Message, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO messages(conversation_id,role,content,created_at) VALUES (?,?,?,?)`,
		conversationID, role, content, now)
	if err != nil {
		return domain.Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=? WHERE id=?`, now, conversationID); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{ID: id, ConversationID: conversationID, Role: role, Content: content, CreatedAt: now}, nil
}

// RecentMessages returns the trailing window in chronological order.
func (r Repo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,conversation_id,role,content,created_at FROM messages WHERE conversation_id=? ORDER BY created_at DESC, id DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// LoadDialogueState returns the active wizard for the conversation, or
// ErrNotFound when none exists.
func (r Repo) LoadDialogueState(ctx context.Context, conversationID string) (domain.DialogueState, error) {
	var s domain.DialogueState
	var pending string
	err := r.DB.QueryRowContext(ctx, `SELECT conversation_id,step,pending_json,created_at FROM dialogue_states WHERE conversation_id=?`, conversationID).
		Scan(&s.ConversationID, &s.Step, &pending, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal([]byte(pending), &s.Pending); err != nil {
		return s, fmt.Errorf("decode dialogue state: %w", err)
	}
	return s, nil
}

// SaveDialogueState upserts the wizard slot; a nil state deletes it.
func (r Repo) SaveDialogueState(ctx context.Context, tx *sql.Tx, conversationID string, state *domain.DialogueState) error {
	exec := func(q string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, q, args...)
		}
		return r.DB.ExecContext(ctx, q, args...)
	}
	if state == nil {
		_, err := exec(`DELETE FROM dialogue_states WHERE conversation_id=?`, conversationID)
		return err
	}
	pending, err := json.Marshal(state.Pending)
	if err != nil {
		return fmt.Errorf("encode dialogue state: %w", err)
	}
	_, err = exec(`INSERT INTO dialogue_states(conversation_id,step,pending_json,created_at) VALUES (?,?,?,?)
ON CONFLICT(conversation_id) DO UPDATE SET step=excluded.step, pending_json=excluded.pending_json`,
		conversationID, state.Step, string(pending), state.CreatedAt)
	return err
}
