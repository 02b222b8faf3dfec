// ABOUTME: Tests for database initialization
// ABOUTME: Verifies schema creation, seed rows and transaction handling

package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/agora/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", CreatedAt: time.Now()}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func createTestTopic(t *testing.T, db *sql.DB, title string, userID int64) *models.Topic {
	t.Helper()
	topic := models.NewTopic(title, userID, time.Now())
	topic.Slug = "test-topic"
	if err := InsertTopic(context.Background(), db, topic); err != nil {
		t.Fatalf("InsertTopic failed: %v", err)
	}
	return topic
}

func TestInitDB(t *testing.T) {
	db := openTestDB(t)

	tables := []string{"users", "categories", "topics", "posts", "topic_users",
		"topic_allowed_users", "invites", "notifications", "topic_revisions", "topic_search"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInitDBSeedsSystemRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	_ = db.Close()

	// Reopening must not duplicate seed rows.
	db, err = InitDB(path)
	if err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	system, err := GetUser(ctx, db, SystemUserID)
	if err != nil {
		t.Fatalf("GetUser(system) failed: %v", err)
	}
	if system.Username != SystemUsername || !system.IsStaff() {
		t.Errorf("unexpected system user: %+v", system)
	}

	cats, err := ListCategories(ctx, db)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(cats) != 1 || cats[0].Name != UncategorizedName {
		t.Errorf("expected only the uncategorized category, got %d", len(cats))
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		u := &models.User{Username: "ghost", CreatedAt: time.Now()}
		if err := CreateUser(ctx, tx, u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := GetUserByUsername(ctx, db, "ghost"); !IsNotFound(err) {
		t.Errorf("expected rolled back user to be missing, got %v", err)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
