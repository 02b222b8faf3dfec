// ABOUTME: Database connection management and initialization
// ABOUTME: Handles SQLite connection, schema creation and seed rows

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SystemUserID is the seeded staff account that owns automatic actions.
const SystemUserID int64 = -1

// SystemUsername is the username of the seeded system account.
const SystemUsername = "system"

// UncategorizedName is the seeded fallback category.
const UncategorizedName = "uncategorized"

// ErrNotFound is returned when an update or lookup matches no row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err means a lookup matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound)
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// InitDB initializes the database connection and creates schema.
func InitDB(dbPath string) (*sql.DB, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + dbPath
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; keep every statement on one connection.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := seed(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		email TEXT NOT NULL DEFAULT '',
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		moderator BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		slug TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		user_id INTEGER NOT NULL REFERENCES users(id),
		topic_count INTEGER NOT NULL DEFAULT 0,
		auto_close_hours REAL,
		read_restricted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		fancy_title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL,
		category_id INTEGER REFERENCES categories(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		last_post_user_id INTEGER NOT NULL,
		archetype TEXT NOT NULL DEFAULT 'regular',
		visible BOOLEAN NOT NULL DEFAULT TRUE,
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		pinned_at DATETIME,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		posts_count INTEGER NOT NULL DEFAULT 0,
		highest_post_number INTEGER NOT NULL DEFAULT 0,
		moderator_posts_count INTEGER NOT NULL DEFAULT 0,
		reply_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		star_count INTEGER NOT NULL DEFAULT 0,
		featured_user_ids TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		last_posted_at DATETIME,
		bumped_at DATETIME NOT NULL,
		auto_close_at DATETIME,
		auto_close_user_id INTEGER,
		auto_close_started_at DATETIME,
		meta_data TEXT NOT NULL DEFAULT '{}',
		deleted_at DATETIME,
		deleted_by_id INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id),
		post_number INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		raw TEXT NOT NULL,
		cooked TEXT NOT NULL DEFAULT '',
		post_type INTEGER NOT NULL DEFAULT 1,
		reply_to_post_number INTEGER,
		like_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME,
		UNIQUE (topic_id, post_number)
	);

	CREATE TABLE IF NOT EXISTS topic_users (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		posted BOOLEAN NOT NULL DEFAULT FALSE,
		starred BOOLEAN NOT NULL DEFAULT FALSE,
		starred_at DATETIME,
		last_read_post_number INTEGER NOT NULL DEFAULT 0,
		seen_post_count INTEGER NOT NULL DEFAULT 0,
		cleared_pinned_at DATETIME,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS topic_allowed_users (
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (topic_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS invites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invite_key TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		invited_by_id INTEGER NOT NULL REFERENCES users(id),
		topic_id INTEGER REFERENCES topics(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		redeemed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		topic_id INTEGER,
		post_number INTEGER,
		data TEXT NOT NULL DEFAULT '{}',
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topic_revisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL,
		version INTEGER NOT NULL,
		changes TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS topic_search USING fts5(
		topic_id UNINDEXED,
		title,
		raw
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email)) WHERE email != '';
	CREATE INDEX IF NOT EXISTS idx_topics_category ON topics(category_id);
	CREATE INDEX IF NOT EXISTS idx_topics_bumped ON topics(bumped_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_topic ON posts(topic_id, sort_order);
	CREATE INDEX IF NOT EXISTS idx_topic_users_topic ON topic_users(topic_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read);
	CREATE INDEX IF NOT EXISTS idx_revisions_topic ON topic_revisions(topic_id);
	`

	_, err := db.Exec(schema)
	return err
}

func seed(db *sql.DB) error {
	now := time.Now().UTC()
	if _, err := db.Exec(`
		INSERT OR IGNORE INTO users (id, username, email, admin, moderator, created_at)
		VALUES (?, ?, ?, TRUE, TRUE, ?)`,
		SystemUserID, SystemUsername, "no-reply@agora.invalid", now); err != nil {
		return err
	}
	_, err := db.Exec(`
		INSERT OR IGNORE INTO categories (name, slug, description, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		UncategorizedName, UncategorizedName, "Topics that need no category", SystemUserID, now)
	return err
}

// WithTx runs fn inside a transaction, committing on success.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// requireRow turns an update that matched nothing into ErrNotFound.
func requireRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
