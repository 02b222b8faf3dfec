// ABOUTME: Denormalized topic statistics and featured posters
// ABOUTME: Recomputed from posts after every change to a topic's posts

package forum

import (
	"context"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
)

// refreshStats recomputes counts, last poster, featured users and stars of
// topic from its posts. The caller saves the topic.
func refreshStats(ctx context.Context, q db.DBTX, topic *models.Topic) error {
	stats, err := db.TopicPostStats(ctx, q, topic.ID)
	if err != nil {
		return err
	}
	topic.PostsCount = stats.PostsCount
	topic.HighestPostNumber = stats.HighestPostNumber
	topic.ModeratorPostsCount = stats.ModeratorPostsCount
	topic.ReplyCount = stats.ReplyCount
	topic.LikeCount = stats.LikeCount
	if stats.LastPostedAt != nil {
		topic.LastPostUserID = stats.LastPostUserID
		topic.LastPostedAt = stats.LastPostedAt
	}

	featured, err := db.RecentPosters(ctx, q, topic.ID,
		[]int64{topic.UserID, topic.LastPostUserID}, models.MaxFeaturedUsers)
	if err != nil {
		return err
	}
	if featured == nil {
		featured = []int64{}
	}
	topic.FeaturedUserIDs = featured

	stars, err := db.CountStars(ctx, q, topic.ID)
	if err != nil {
		return err
	}
	topic.StarCount = stars
	return nil
}

// PostersSummary returns the creator, the featured users and the last poster
// of a topic, each user once.
func (s *Service) PostersSummary(ctx context.Context, viewer *models.User, topicID int64) ([]*models.User, error) {
	topic, err := s.GetTopic(ctx, viewer, topicID)
	if err != nil {
		return nil, err
	}

	order := []int64{topic.UserID}
	order = append(order, topic.FeaturedUserIDs...)
	order = append(order, topic.LastPostUserID)

	users, err := db.UsersByIDs(ctx, s.db, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	seen := make(map[int64]bool, len(order))
	summary := make([]*models.User, 0, len(order))
	for _, id := range order {
		u, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		summary = append(summary, u)
	}
	return summary, nil
}
