// ABOUTME: Category database operations
// ABOUTME: CRUD functions and topic count bookkeeping for categories

package db

import (
	"context"
	"fmt"

	"github.com/harper/agora/internal/models"
)

const categoryColumns = `id, name, slug, description, user_id, topic_count, auto_close_hours, read_restricted, created_at`

// CreateCategory inserts a new category and sets its ID.
func CreateCategory(ctx context.Context, q DBTX, c *models.Category) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO categories (name, slug, description, user_id, topic_count, auto_close_hours, read_restricted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Slug, c.Description, c.UserID, c.TopicCount, c.AutoCloseHours, c.ReadRestricted, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.Name, err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// GetCategory retrieves a category by ID.
func GetCategory(ctx context.Context, q DBTX, id int64) (*models.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

// GetCategoryByName retrieves a category by name, case-insensitively.
func GetCategoryByName(ctx context.Context, q DBTX, name string) (*models.Category, error) {
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name)
	return scanCategory(row)
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, q DBTX) ([]*models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory writes the editable category fields.
func UpdateCategory(ctx context.Context, q DBTX, c *models.Category) error {
	result, err := q.ExecContext(ctx, `
		UPDATE categories SET name = ?, slug = ?, description = ?, auto_close_hours = ?, read_restricted = ?
		WHERE id = ?`,
		c.Name, c.Slug, c.Description, c.AutoCloseHours, c.ReadRestricted, c.ID)
	if err != nil {
		return err
	}
	return requireRow(result, fmt.Sprintf("category %d", c.ID))
}

// RefreshCategoryTopicCount recounts the visible regular topics of a category.
func RefreshCategoryTopicCount(ctx context.Context, q DBTX, categoryID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM topics
		WHERE category_id = ? AND deleted_at IS NULL AND visible AND archetype = ?`,
		categoryID, models.ArchetypeRegular).Scan(&count)
	if err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, `UPDATE categories SET topic_count = ? WHERE id = ?`, count, categoryID); err != nil {
		return 0, err
	}
	return count, nil
}

func scanCategory(s scanner) (*models.Category, error) {
	var c models.Category
	err := s.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.UserID,
		&c.TopicCount, &c.AutoCloseHours, &c.ReadRestricted, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
