package services

import (
	"context"
	"errors"

	"locshare-backend/internal/db"
	"locshare-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrRequestPending   = errors.New("a pending friend request already exists between these users")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrAlreadyResponded = errors.New("friend request has already been responded to")
)

type FriendService struct{}

func NewFriendService() *FriendService {
	return &FriendService{}
}

// IsAcceptedFriend reports whether an accepted friendship exists between the
// two users, in either direction. This is the sole authorization gate for
// location and chat traffic, queried fresh on every check. On a storage
// error callers must deny, never allow.
func (s *FriendService) IsAcceptedFriend(ctx context.Context, userA, userB int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		)
	`
	var ok bool
	if err := db.Pool.QueryRow(ctx, query, userA, userB).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *FriendService) SendRequest(ctx context.Context, fromUserID, toUserID int) (*models.Friendship, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}

	// A rejected request does not block a new one; pending or accepted does.
	var status string
	query := `
		SELECT status FROM friendships
		WHERE ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		AND status IN ('pending', 'accepted')
		LIMIT 1
	`
	err := db.Pool.QueryRow(ctx, query, fromUserID, toUserID).Scan(&status)
	if err == nil {
		if status == models.FriendshipAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrRequestPending
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var f models.Friendship
	insert := `
		INSERT INTO friendships (from_user_id, to_user_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING id, from_user_id, to_user_id, status, created_at
	`
	err = db.Pool.QueryRow(ctx, insert, fromUserID, toUserID).
		Scan(&f.ID, &f.FromUserID, &f.ToUserID, &f.Status, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// RespondRequest accepts or rejects a pending request. Only the recipient
// may respond, and a request transitions exactly once.
func (s *FriendService) RespondRequest(ctx context.Context, requestID, responderID int, status string) (*models.Friendship, error) {
	var f models.Friendship
	query := `SELECT id, from_user_id, to_user_id, status, created_at FROM friendships WHERE id = $1 AND to_user_id = $2`
	err := db.Pool.QueryRow(ctx, query, requestID, responderID).
		Scan(&f.ID, &f.FromUserID, &f.ToUserID, &f.Status, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if f.Status != models.FriendshipPending {
		return nil, ErrAlreadyResponded
	}

	update := `UPDATE friendships SET status = $1, responded_at = now() WHERE id = $2 RETURNING status, responded_at`
	if err := db.Pool.QueryRow(ctx, update, status, requestID).Scan(&f.Status, &f.RespondedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFriendIDs returns the ids of every accepted friend of the user. An
// empty result is not an error, just zero fan-out targets.
func (s *FriendService) ListFriendIDs(ctx context.Context, userID int) ([]int, error) {
	query := `
		SELECT CASE WHEN from_user_id = $1 THEN to_user_id ELSE from_user_id END
		FROM friendships
		WHERE status = 'accepted' AND (from_user_id = $1 OR to_user_id = $1)
	`
	rows, err := db.Pool.Query(ctx, query, userID)
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

func (s *FriendService) ListFriends(ctx context.Context, userID int) ([]models.UserInfo, error) {
	query := `
		SELECT u.id, u.username
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.from_user_id = $1 THEN f.to_user_id ELSE f.from_user_id END
		WHERE f.status = 'accepted' AND (f.from_user_id = $1 OR f.to_user_id = $1)
		ORDER BY u.username
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []models.UserInfo
	for rows.Next() {
		var u models.UserInfo
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		friends = append(friends, u)
	}
	return friends, rows.Err()
}

// ListPendingRequests returns requests awaiting a response from the user.
func (s *FriendService) ListPendingRequests(ctx context.Context, userID int) ([]models.Friendship, error) {
	query := `
		SELECT id, from_user_id, to_user_id, status, created_at
		FROM friendships
		WHERE to_user_id = $1 AND status = 'pending'
		ORDER BY created_at
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.Friendship
	for rows.Next() {
		var f models.Friendship
		if err := rows.Scan(&f.ID, &f.FromUserID, &f.ToUserID, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, f)
	}
	return requests, rows.Err()
}
