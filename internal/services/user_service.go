package services

import (
	"context"
	"errors"
	"time"

	"locshare-backend/internal/db"
	"locshare-backend/internal/models"
	"locshare-backend/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserExists = errors.New("username already exists")
var ErrUserNotFound = errors.New("user not found")

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, req.Username).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	var user models.User
	query := `INSERT INTO users (username, password_hash, plan) VALUES ($1, $2, 'free') RETURNING id, username, plan, created_at`
	err = db.Pool.QueryRow(ctx, query, req.Username, string(hash)).Scan(&user.ID, &user.Username, &user.Plan, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var user models.User
	query := `SELECT id, username, password_hash FROM users WHERE username = $1`
	err := db.Pool.QueryRow(ctx, query, req.Username).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	token, err := GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:    token,
		Username: user.Username,
		UserID:   user.ID,
	}, nil
}

// GetUser returns a user record by id, including the plan flag that drives
// the location-history quota.
func (s *UserService) GetUser(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, plan, created_at FROM users WHERE id = $1`
	err := db.Pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.Plan, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, username, plan, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Plan, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func GenerateJWT(userID int, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 72).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(utils.GetEnv("JWT_SECRET", "secret")), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
