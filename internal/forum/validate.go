// ABOUTME: Title preparation and validation rules for topics
// ABOUTME: Sanitize, clean, length bounds, quality sentinel and uniqueness

package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/text"
)

// PrepareTitle strips markup from a user supplied title and applies the
// configured clean-up rules.
func (s *Service) PrepareTitle(raw string) string {
	return text.CleanTitle(text.SanitizeTitle(raw), text.CleanOptions{
		Prettify:       s.site.TitlePrettify,
		AllowUppercase: s.site.AllowUppercasePosts,
	})
}

// validateTitle checks a prepared title. exceptID is the topic being
// renamed, or 0 for a new topic.
func (s *Service) validateTitle(ctx context.Context, q db.DBTX, title, archetype string, exceptID int64) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title", ErrTitleBlank, "")
	}

	private := archetype == models.ArchetypePrivateMessage
	minLen := s.site.MinTopicTitleLength
	if private {
		minLen = s.site.MinPrivateMessageTitleLength
	}
	n := utf8.RuneCountInString(title)
	if n < minLen {
		return invalid("title", ErrTitleTooShort, fmt.Sprintf("minimum is %d characters", minLen))
	}
	if n > s.site.MaxTopicTitleLength {
		return invalid("title", ErrTitleTooLong, fmt.Sprintf("maximum is %d characters", s.site.MaxTopicTitleLength))
	}

	sentinel := text.Sentinel{
		MinEntropy:     s.site.TitleMinEntropy,
		MaxWordLength:  s.site.MaxWordLength,
		AllowUppercase: s.site.AllowUppercasePosts,
	}
	if private && minLen < sentinel.MinEntropy {
		sentinel.MinEntropy = minLen
	}
	if err := sentinel.Check(title); err != nil {
		return invalid("title", ErrTitleQuality, err.Error())
	}

	if private || s.site.AllowDuplicateTopicTitles {
		return nil
	}
	taken, err := db.TitleExists(ctx, q, title, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return invalid("title", ErrTitleTaken, "")
	}
	return nil
}

// resolveCategory maps a category name to a row. A blank name means the
// uncategorized category.
func resolveCategory(ctx context.Context, q db.DBTX, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = db.UncategorizedName
	}
	cat, err := db.GetCategoryByName(ctx, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalid("category", ErrCategoryNotFound, name)
	}
	return cat, err
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " \t\n@/") {
		return invalid("username", ErrUsernameInvalid, username)
	}
	if utf8.RuneCountInString(username) > 60 {
		return invalid("username", ErrUsernameInvalid, "maximum is 60 characters")
	}
	return nil
}
