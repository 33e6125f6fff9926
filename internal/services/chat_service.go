package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"locshare-backend/internal/db"
	"locshare-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Authorization and not-found failures are deliberately conflated so a
// non-participant cannot learn whether a conversation or message exists.
var (
	ErrNotFriends           = errors.New("users are not friends")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEmptyContent         = errors.New("message content is required")
	ErrContentTooLong       = errors.New("message content exceeds 1000 characters")
	ErrInvalidMessageType   = errors.New("invalid message type")
)

const maxContentLength = 1000

type ChatService struct {
	friends *FriendService
}

func NewChatService(friends *FriendService) *ChatService {
	return &ChatService{friends: friends}
}

// validateMessage trims and checks content before anything is persisted.
// An empty type defaults to text.
func validateMessage(content, msgType string) (string, string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", "", ErrContentTooLong
	}
	if msgType == "" {
		msgType = "text"
	}
	switch msgType {
	case "text", "image", "location", "system":
	default:
		return "", "", ErrInvalidMessageType
	}
	return content, msgType, nil
}

// pairKey normalizes an unordered user pair so both argument orders map to
// the same direct conversation. Backed by a unique index.
func pairKey(userA, userB int) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// GetOrCreateConversation returns the direct conversation between the two
// users, creating it if this is their first exchange. Requires an accepted
// friendship; a storage failure on that check denies, never allows.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userID, recipientID int) (*models.ConversationResponse, error) {
	ok, err := s.friends.IsAcceptedFriend(ctx, userID, recipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	// One conversation per unordered pair, enforced by the unique pair key.
	key := pairKey(userID, recipientID)
	var conversationID string
	err = db.Pool.QueryRow(ctx, `SELECT id FROM conversations WHERE pair_key = $1`, key).Scan(&conversationID)
	if err == nil {
		return &models.ConversationResponse{ConversationID: conversationID, IsNew: false}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newID := uuid.New().String()
	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, created_by, is_active, pair_key)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (pair_key) DO NOTHING
	`, newID, userID, key)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent first contact won the insert; use its conversation.
		_ = tx.Rollback(ctx)
		if err := db.Pool.QueryRow(ctx, `SELECT id FROM conversations WHERE pair_key = $1`, key).Scan(&conversationID); err != nil {
			return nil, err
		}
		return &models.ConversationResponse{ConversationID: conversationID, IsNew: false}, nil
	}

	_, err = tx.Exec(ctx, `INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2), ($1, $3)`, newID, userID, recipientID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &models.ConversationResponse{ConversationID: newID, IsNew: true}, nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID string, userID int) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`
	if err := db.Pool.QueryRow(ctx, query, conversationID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetParticipants returns the user ids of everyone in the conversation.
func (s *ChatService) GetParticipants(ctx context.Context, conversationID string) ([]int, error) {
	rows, err := db.Pool.Query(ctx, `SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SendMessage validates and persists a message with status sent, bumps the
// conversation's last message and activity, and returns the populated row.
func (s *ChatService) SendMessage(ctx context.Context, conversationID string, senderID int, content, msgType string, replyToID int) (*models.Message, error) {
	content, msgType, err := validateMessage(content, msgType)
	if err != nil {
		return nil, err
	}

	ok, err := s.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}

	var replyTo *int
	if replyToID != 0 {
		// Replies may only reference a message in the same conversation.
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND conversation_id = $2)`
		if err := db.Pool.QueryRow(ctx, check, replyToID, conversationID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrMessageNotFound
		}
		replyTo = &replyToID
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Status:         models.MessageStatusSent,
		ReplyToID:      replyTo,
	}
	insert := `
		INSERT INTO messages (conversation_id, sender_id, content, type, status, reply_to_id)
		VALUES ($1, $2, $3, $4, 'sent', $5)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, insert, conversationID, senderID, content, msgType, replyTo).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, err
	}

	bump := `UPDATE conversations SET last_message_id = $1, last_activity = $2 WHERE id = $3`
	if _, err := tx.Exec(ctx, bump, msg.ID, msg.CreatedAt, conversationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Best effort; the message is already persisted.
	_ = db.Pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, senderID).Scan(&msg.SenderUsername)

	return msg, nil
}

// MarkAsRead acknowledges every message in the conversation authored by
// someone other than the reader. Idempotent: a receipt is appended only if
// the reader has none for that message, and status only ever moves forward
// to read. Returns the receipt timestamp and how many messages were newly
// acknowledged.
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID string, readerID int) (time.Time, int, error) {
	ok, err := s.IsParticipant(ctx, conversationID, readerID)
	if err != nil {
		return time.Time{}, 0, err
	}
	if !ok {
		return time.Time{}, 0, ErrConversationNotFound
	}

	readAt := time.Now().UTC()

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return time.Time{}, 0, err
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT m.id, $2, $3
		FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
		AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2
		)
	`
	tag, err := tx.Exec(ctx, insert, conversationID, readerID, readAt)
	if err != nil {
		return time.Time{}, 0, err
	}

	update := `
		UPDATE messages SET status = 'read'
		WHERE conversation_id = $1 AND sender_id <> $2 AND status <> 'read'
	`
	if _, err := tx.Exec(ctx, update, conversationID, readerID); err != nil {
		return time.Time{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, 0, err
	}
	return readAt, int(tag.RowsAffected()), nil
}

// DeleteMessage tombstones a message. Only the original sender may delete;
// anyone else gets the same error as for an unknown message. The row stays,
// and a conversation's last message is left pointing at the tombstone.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID int) (*models.Message, error) {
	var msg models.Message
	query := `
		UPDATE messages SET content = $3, is_deleted = true
		WHERE id = $1 AND sender_id = $2
		RETURNING id, conversation_id, sender_id, content, type, status, reply_to_id, is_deleted, created_at
	`
	err := db.Pool.QueryRow(ctx, query, messageID, requesterID, models.DeletedMessageText).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &msg.Status, &msg.ReplyToID, &msg.IsDeleted, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// GetMessages returns up to limit messages of the conversation, oldest
// first, with read receipts attached. Participant-gated.
func (s *ChatService) GetMessages(ctx context.Context, conversationID string, userID, limit int) ([]models.Message, error) {
	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.type, m.status, m.reply_to_id, m.is_deleted, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	byID := make(map[int]*models.Message)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderUsername, &m.Content, &m.Type, &m.Status, &m.ReplyToID, &m.IsDeleted, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		byID[messages[i].ID] = &messages[i]
	}

	if len(messages) > 0 {
		ids := make([]int, 0, len(messages))
		for id := range byID {
			ids = append(ids, id)
		}
		receipts, err := db.Pool.Query(ctx, `SELECT message_id, user_id, read_at FROM message_reads WHERE message_id = ANY($1)`, ids)
		if err != nil {
			return nil, err
		}
		defer receipts.Close()
		for receipts.Next() {
			var msgID int
			var r models.ReadReceipt
			if err := receipts.Scan(&msgID, &r.UserID, &r.ReadAt); err != nil {
				return nil, err
			}
			if m, ok := byID[msgID]; ok {
				m.ReadBy = append(m.ReadBy, r)
			}
		}
		if err := receipts.Err(); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

// ListConversations returns the user's conversations, most recent activity
// first, each with the counterpart user and last message preview.
func (s *ChatService) ListConversations(ctx context.Context, userID int) ([]models.ConversationListItem, error) {
	query := `
		SELECT c.id, c.last_activity, u.id, u.username,
			m.id, m.sender_id, m.content, m.type, m.status, m.is_deleted, m.created_at
		FROM conversations c
		JOIN conversation_participants me ON c.id = me.conversation_id AND me.user_id = $1
		JOIN conversation_participants other ON c.id = other.conversation_id AND other.user_id <> $1
		JOIN users u ON u.id = other.user_id
		LEFT JOIN messages m ON m.id = c.last_message_id
		WHERE c.is_active
		ORDER BY c.last_activity DESC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ConversationListItem
	for rows.Next() {
		var item models.ConversationListItem
		var msgID, msgSender *int
		var msgContent, msgType, msgStatus *string
		var msgDeleted *bool
		var msgCreated *time.Time
		err := rows.Scan(&item.ID, &item.LastActivity, &item.OtherUserID, &item.OtherUsername,
			&msgID, &msgSender, &msgContent, &msgType, &msgStatus, &msgDeleted, &msgCreated)
		if err != nil {
			return nil, err
		}
		if msgID != nil {
			item.LastMessage = &models.Message{
				ID:             *msgID,
				ConversationID: item.ID,
				SenderID:       *msgSender,
				Content:        *msgContent,
				Type:           *msgType,
				Status:         *msgStatus,
				IsDeleted:      *msgDeleted,
				CreatedAt:      *msgCreated,
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
