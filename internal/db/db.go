package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// InitDB initializes the PostgreSQL connection pool and makes sure the
// schema exists.
func InitDB(connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	Pool, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	if err := ensureSchema(context.Background()); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return nil
}

// CloseDB closes the database connection pool
func CloseDB() {
	if Pool != nil {
		Pool.Close()
	}
}

func ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            SERIAL PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			plan          TEXT NOT NULL DEFAULT 'free',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			id           SERIAL PRIMARY KEY,
			from_user_id INT NOT NULL REFERENCES users(id),
			to_user_id   INT NOT NULL REFERENCES users(id),
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			responded_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friendships_pair
			ON friendships (from_user_id, to_user_id)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT PRIMARY KEY,
			created_by      INT NOT NULL REFERENCES users(id),
			is_active       BOOLEAN NOT NULL DEFAULT true,
			pair_key        TEXT NOT NULL UNIQUE,
			last_message_id INT,
			last_activity   TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			user_id         INT NOT NULL REFERENCES users(id),
			PRIMARY KEY (conversation_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              SERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id       INT NOT NULL REFERENCES users(id),
			content         TEXT NOT NULL,
			type            TEXT NOT NULL DEFAULT 'text',
			status          TEXT NOT NULL DEFAULT 'sent',
			reply_to_id     INT REFERENCES messages(id),
			is_deleted      BOOLEAN NOT NULL DEFAULT false,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id INT NOT NULL REFERENCES messages(id),
			user_id    INT NOT NULL REFERENCES users(id),
			read_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (message_id, user_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
