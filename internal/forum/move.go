// ABOUTME: Moving posts between topics and merging whole topics
// ABOUTME: Renumbers moved posts, remaps replies and fixes read state on both sides

package forum

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

// MoveParams selects posts and where they go. Set exactly one of Title (a new
// topic) or DestinationTopicID (an existing topic).
type MoveParams struct {
	PostIDs            []int64
	Title              string
	Category           string
	DestinationTopicID int64
}

// MovePosts moves posts out of a topic into a new or existing topic and
// returns the destination. Staff only.
func (s *Service) MovePosts(ctx context.Context, actor *models.User, topicID int64, p MoveParams) (*models.Topic, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	newTopic := strings.TrimSpace(p.Title) != ""
	if newTopic == (p.DestinationTopicID != 0) {
		return nil, ErrMoveDestination
	}
	if len(p.PostIDs) == 0 {
		return nil, ErrNoPostsToMove
	}

	var dest *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		source, err := getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		posts, err := s.postsToMove(ctx, o.tx, source, p.PostIDs)
		if err != nil {
			return err
		}

		if newTopic {
			owner := posts[0].UserID
			dest, _, err = s.insertTopic(ctx, o, owner, NewTopicParams{
				Title:     p.Title,
				Category:  p.Category,
				Archetype: source.Archetype,
				moved:     true,
			})
			if err != nil {
				return err
			}
			if dest.IsPrivateMessage() {
				if err := copyAllowedUsers(ctx, o, source.ID, dest.ID); err != nil {
					return err
				}
			}
		} else {
			if p.DestinationTopicID == source.ID {
				return ErrSameTopic
			}
			dest, err = getTopic(ctx, o.tx, p.DestinationTopicID)
			if err != nil {
				return err
			}
			if dest.IsDeleted() {
				return ErrTopicNotFound
			}
			if dest.Archived {
				return ErrTopicArchived
			}
		}

		sortOrder := posts[0].SortOrder
		firstNumber, err := s.movePosts(ctx, o, actor, source, dest, posts)
		if err != nil {
			return err
		}

		note := movedMessage(len(posts), dest, newTopic)
		if _, err := s.appendPost(ctx, o, source, actor.ID, note, nil, models.PostTypeModeratorAction, &sortOrder); err != nil {
			return err
		}
		if newTopic {
			if err := s.reindex(ctx, o.tx, dest); err != nil {
				return err
			}
		}

		o.publish(notify.Event{
			Kind:       notify.KindPostsMoved,
			TopicID:    dest.ID,
			TopicTitle: dest.Title,
			ActorID:    actor.ID,
			UserIDs:    authorIDs(posts),
			PostNumber: firstNumber,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dest, nil
}

// MergeTopic moves every post of a topic, including the first, into another
// topic, then closes and unlists the emptied topic. Staff only.
func (s *Service) MergeTopic(ctx context.Context, actor *models.User, topicID, destinationID int64) (*models.Topic, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if topicID == destinationID {
		return nil, ErrSameTopic
	}

	var dest *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		source, err := getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		dest, err = getTopic(ctx, o.tx, destinationID)
		if err != nil {
			return err
		}
		if dest.IsDeleted() {
			return ErrTopicNotFound
		}
		if dest.Archived {
			return ErrTopicArchived
		}

		posts, err := db.ListPosts(ctx, o.tx, source.ID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return ErrNoPostsToMove
		}
		sort.Slice(posts, func(i, j int) bool { return posts[i].PostNumber < posts[j].PostNumber })

		firstNumber, err := s.movePosts(ctx, o, actor, source, dest, posts)
		if err != nil {
			return err
		}

		prev := autoCloseOf(source)
		source.Closed = true
		source.Visible = false
		clearAutoClose(source)
		if err := s.saveTopic(ctx, o, source, prev); err != nil {
			return err
		}
		note := fmt.Sprintf("This topic was merged into [%s](%s).", dest.Title, dest.RelativeURL())
		if _, err := s.appendPost(ctx, o, source, actor.ID, note, nil, models.PostTypeModeratorAction, nil); err != nil {
			return err
		}
		if err := db.RemoveFromIndex(ctx, o.tx, source.ID); err != nil {
			return err
		}
		if source.CategoryID != nil {
			if _, err := db.RefreshCategoryTopicCount(ctx, o.tx, *source.CategoryID); err != nil {
				return err
			}
		}

		o.publish(notify.Event{
			Kind:       notify.KindPostsMoved,
			TopicID:    dest.ID,
			TopicTitle: dest.Title,
			ActorID:    actor.ID,
			UserIDs:    authorIDs(posts),
			PostNumber: firstNumber,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dest, nil
}

// postsToMove loads and checks the selected posts, ordered by post number.
func (s *Service) postsToMove(ctx context.Context, q db.DBTX, source *models.Topic, ids []int64) ([]*models.Post, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	posts, err := db.PostsByIDs(ctx, q, unique)
	if err != nil {
		return nil, err
	}
	if len(posts) != len(unique) {
		return nil, ErrPostNotInTopic
	}
	for _, p := range posts {
		if p.TopicID != source.ID || p.DeletedAt != nil {
			return nil, ErrPostNotInTopic
		}
		if p.PostNumber == 1 {
			return nil, ErrCannotMoveFirstPost
		}
	}
	return posts, nil
}

// movePosts appends posts, already in post-number order, to dest. It
// recomputes both topics and fixes read state, and returns the first new
// post number.
func (s *Service) movePosts(ctx context.Context, o *op, actor *models.User, source, dest *models.Topic, posts []*models.Post) (int, error) {
	next, err := db.NextPostNumber(ctx, o.tx, dest.ID)
	if err != nil {
		return 0, err
	}

	renumbered := make(map[int]int, len(posts))
	for i, p := range posts {
		renumbered[p.PostNumber] = next + i
	}

	highestByAuthor := make(map[int64]int)
	for _, p := range posts {
		number := renumbered[p.PostNumber]
		if p.ReplyToPostNumber != nil {
			if target, ok := renumbered[*p.ReplyToPostNumber]; ok {
				p.ReplyToPostNumber = &target
			} else {
				p.ReplyToPostNumber = nil
			}
		}
		p.TopicID = dest.ID
		p.PostNumber = number
		p.SortOrder = number
		p.UpdatedAt = o.now
		if err := db.UpdatePostPlacement(ctx, o.tx, p); err != nil {
			return 0, err
		}
		if !p.IsModeratorAction() && number > highestByAuthor[p.UserID] {
			highestByAuthor[p.UserID] = number
		}
		if p.CreatedAt.After(dest.BumpedAt) && !p.IsModeratorAction() {
			dest.BumpedAt = p.CreatedAt
		}
	}

	for _, t := range []*models.Topic{source, dest} {
		if err := refreshStats(ctx, o.tx, t); err != nil {
			return 0, err
		}
		t.UpdatedAt = o.now
		if err := db.UpdateTopic(ctx, o.tx, t); err != nil {
			return 0, err
		}
	}

	if err := db.ClampLastRead(ctx, o.tx, source.ID, source.HighestPostNumber); err != nil {
		return 0, err
	}

	authors := make([]int64, 0, len(highestByAuthor))
	for uid := range highestByAuthor {
		authors = append(authors, uid)
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i] < authors[j] })
	for _, uid := range authors {
		tu, err := loadTopicUser(ctx, o.tx, uid, dest.ID, o.now)
		if err != nil {
			return 0, err
		}
		tu.Posted = true
		if n := highestByAuthor[uid]; n > tu.LastReadPostNumber {
			tu.LastReadPostNumber = n
			tu.SeenPostCount = n
		}
		tu.UpdatedAt = o.now
		if err := db.UpsertTopicUser(ctx, o.tx, tu); err != nil {
			return 0, err
		}
	}

	mover, err := loadTopicUser(ctx, o.tx, actor.ID, dest.ID, o.now)
	if err != nil {
		return 0, err
	}
	mover.LastReadPostNumber = dest.HighestPostNumber
	mover.SeenPostCount = dest.HighestPostNumber
	mover.UpdatedAt = o.now
	if err := db.UpsertTopicUser(ctx, o.tx, mover); err != nil {
		return 0, err
	}

	return next, nil
}

func copyAllowedUsers(ctx context.Context, o *op, fromID, toID int64) error {
	users, err := db.ListAllowedUsers(ctx, o.tx, fromID)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := db.AddAllowedUser(ctx, o.tx, toID, u.ID, o.now); err != nil {
			return err
		}
	}
	return nil
}

func movedMessage(n int, dest *models.Topic, newTopic bool) string {
	what := "a post"
	if n > 1 {
		what = fmt.Sprintf("%d posts", n)
	}
	where := "an existing topic"
	if newTopic {
		where = "a new topic"
	}
	return fmt.Sprintf("I moved %s to %s: [%s](%s)", what, where, dest.Title, dest.RelativeURL())
}

func authorIDs(posts []*models.Post) []int64 {
	seen := make(map[int64]bool, len(posts))
	var ids []int64
	for _, p := range posts {
		if p.IsModeratorAction() || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		ids = append(ids, p.UserID)
	}
	return ids
}
