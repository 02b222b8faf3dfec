// ABOUTME: Similar topic suggestions for a draft
// ABOUTME: Full-text match over open, listed regular topics the viewer can read

package forum

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
)

// SimilarTo suggests existing topics resembling a draft title and body.
// Short titles get no suggestions.
func (s *Service) SimilarTo(ctx context.Context, viewer *models.User, title, raw string) ([]*models.Topic, error) {
	cleaned := s.PrepareTitle(title)
	if utf8.RuneCountInString(cleaned) < s.site.MinTitleSimilarLength {
		return nil, nil
	}
	limit := s.site.SimilarTopicsLimit
	if limit <= 0 {
		return nil, nil
	}

	candidates, err := db.SearchTopics(ctx, s.db, strings.TrimSpace(cleaned+" "+raw), db.SearchFilter{Limit: limit * 2})
	if err != nil {
		return nil, err
	}

	similar := make([]*models.Topic, 0, limit)
	for _, t := range candidates {
		ok, err := canSee(ctx, s.db, viewer, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		similar = append(similar, t)
		if len(similar) == limit {
			break
		}
	}
	return similar, nil
}
