// ABOUTME: Full-text search index for topics
// ABOUTME: FTS5 table kept in step with topic titles and first posts

package db

import (
	"context"
	"strings"
	"unicode"

	"github.com/harper/agora/internal/models"
)

// maxSearchTerms bounds how many distinct words a similarity query ORs together.
const maxSearchTerms = 32

// SearchFilter narrows SearchTopics to topics a reader would be offered.
type SearchFilter struct {
	Limit int
}

// IndexTopic replaces the search entry of a topic.
func IndexTopic(ctx context.Context, q DBTX, topicID int64, title, raw string) error {
	if err := RemoveFromIndex(ctx, q, topicID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `INSERT INTO topic_search (topic_id, title, raw) VALUES (?, ?, ?)`,
		topicID, title, raw)
	return err
}

// RemoveFromIndex drops a topic from the search index.
func RemoveFromIndex(ctx context.Context, q DBTX, topicID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM topic_search WHERE topic_id = ?`, topicID)
	return err
}

// SearchTopics returns visible, open, unarchived, live regular topics
// matching any word of text, best match first.
func SearchTopics(ctx context.Context, q DBTX, text string, f SearchFilter) ([]*models.Topic, error) {
	match := anyTermQuery(text)
	if match == "" {
		return nil, nil
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	return queryTopics(ctx, q, `
		SELECT `+topicColumns+`
		FROM topic_search JOIN topics t ON t.id = topic_search.topic_id
		WHERE topic_search MATCH ?
			AND t.archetype = ? AND t.visible AND NOT t.closed AND NOT t.archived
			AND t.deleted_at IS NULL
		ORDER BY topic_search.rank
		LIMIT ?`,
		match, models.ArchetypeRegular, limit)
}

// anyTermQuery turns free text into an FTS5 query that ORs quoted words, so
// user punctuation never reaches the FTS5 parser.
func anyTermQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
		if len(terms) == maxSearchTerms {
			break
		}
	}
	return strings.Join(terms, " OR ")
}
