// ABOUTME: Topic creation, replies and versioned edits
// ABOUTME: Title and category changes bump the version and record a revision

package forum

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
	"github.com/harper/agora/internal/text"
)

// NewTopicParams describes a topic to create.
type NewTopicParams struct {
	Title string
	Raw   string
	// Category is a category name; blank means uncategorized. Ignored for
	// private messages.
	Category  string
	Archetype string
	// TargetUsernames are the recipients of a private message.
	TargetUsernames []string
	MetaData        map[string]string

	// moved marks a destination created for moved posts; its participants
	// are copied from the source rather than named.
	moved bool
}

// CreateTopic validates and creates a topic with its first post.
func (s *Service) CreateTopic(ctx context.Context, actor *models.User, p NewTopicParams) (*models.Topic, error) {
	if actor == nil {
		return nil, ErrNotAllowed
	}
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = s.createTopic(ctx, o, actor, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// CreatePrivateMessage creates a private topic visible only to its creator,
// the recipients and staff.
func (s *Service) CreatePrivateMessage(ctx context.Context, actor *models.User, title, raw string, recipients []string) (*models.Topic, error) {
	return s.CreateTopic(ctx, actor, NewTopicParams{
		Title:           title,
		Raw:             raw,
		Archetype:       models.ArchetypePrivateMessage,
		TargetUsernames: recipients,
	})
}

func (s *Service) createTopic(ctx context.Context, o *op, actor *models.User, p NewTopicParams) (*models.Topic, error) {
	if strings.TrimSpace(p.Raw) == "" {
		return nil, invalid("raw", ErrBodyBlank, "")
	}
	topic, targets, err := s.insertTopic(ctx, o, actor.ID, p)
	if err != nil {
		return nil, err
	}
	if _, err := s.appendPost(ctx, o, topic, actor.ID, p.Raw, nil, models.PostTypeRegular, nil); err != nil {
		return nil, err
	}
	if err := s.reindex(ctx, o.tx, topic); err != nil {
		return nil, err
	}

	o.publish(notify.Event{
		Kind:       notify.KindTopicCreated,
		TopicID:    topic.ID,
		TopicTitle: topic.Title,
		ActorID:    actor.ID,
		PostNumber: 1,
	})
	if topic.IsPrivateMessage() {
		ids := make([]int64, 0, len(targets))
		for _, u := range targets {
			ids = append(ids, u.ID)
		}
		o.publish(notify.Event{
			Kind:       notify.KindPrivateMessage,
			TopicID:    topic.ID,
			TopicTitle: topic.Title,
			ActorID:    actor.ID,
			UserIDs:    ids,
			PostNumber: 1,
		})
	}
	return topic, nil
}

// insertTopic validates p and inserts a topic owned by ownerID without any
// posts. It returns the private message recipients.
func (s *Service) insertTopic(ctx context.Context, o *op, ownerID int64, p NewTopicParams) (*models.Topic, []*models.User, error) {
	archetype := p.Archetype
	if archetype == "" {
		archetype = models.ArchetypeRegular
	}
	if archetype != models.ArchetypeRegular && archetype != models.ArchetypePrivateMessage {
		return nil, nil, invalid("archetype", ErrNotAllowed, archetype)
	}

	title := s.PrepareTitle(p.Title)
	if err := s.validateTitle(ctx, o.tx, title, archetype, 0); err != nil {
		return nil, nil, err
	}

	topic := models.NewTopic(title, ownerID, o.now)
	topic.Archetype = archetype
	topic.Slug = text.Slugify(title)
	topic.FancyTitle = text.FancyTitle(title)
	for k, v := range p.MetaData {
		if v != "" {
			topic.MetaData[k] = v
		}
	}

	var cat *models.Category
	var targets []*models.User
	if topic.IsPrivateMessage() {
		seen := map[int64]bool{ownerID: true}
		for _, name := range p.TargetUsernames {
			u, err := getUserByUsername(ctx, o.tx, strings.TrimSpace(name))
			if err != nil {
				return nil, nil, err
			}
			if !seen[u.ID] {
				seen[u.ID] = true
				targets = append(targets, u)
			}
		}
		if len(targets) == 0 && !p.moved {
			return nil, nil, invalid("target_usernames", ErrNoRecipients, "")
		}
	} else {
		var err error
		cat, err = resolveCategory(ctx, o.tx, p.Category)
		if err != nil {
			return nil, nil, err
		}
		topic.CategoryID = &cat.ID
		if cat.AutoCloseHours != nil && *cat.AutoCloseHours > 0 {
			setAutoClose(topic, o.now.Add(hoursDuration(*cat.AutoCloseHours)), db.SystemUserID, o.now)
		}
	}

	if err := db.InsertTopic(ctx, o.tx, topic); err != nil {
		return nil, nil, err
	}
	s.syncAutoClose(o, autoCloseState{}, topic)

	if topic.IsPrivateMessage() {
		if err := db.AddAllowedUser(ctx, o.tx, topic.ID, ownerID, o.now); err != nil {
			return nil, nil, err
		}
		for _, u := range targets {
			if err := db.AddAllowedUser(ctx, o.tx, topic.ID, u.ID, o.now); err != nil {
				return nil, nil, err
			}
		}
	}
	if cat != nil {
		if _, err := db.RefreshCategoryTopicCount(ctx, o.tx, cat.ID); err != nil {
			return nil, nil, err
		}
	}
	return topic, targets, nil
}

// appendPost adds a post at the end of the topic, recomputes the topic's
// statistics and saves it. sortOrder overrides the reading position.
func (s *Service) appendPost(ctx context.Context, o *op, topic *models.Topic, userID int64, raw string,
	replyTo *int, postType models.PostType, sortOrder *int) (*models.Post, error) {
	number, err := db.NextPostNumber(ctx, o.tx, topic.ID)
	if err != nil {
		return nil, err
	}

	post := models.NewPost(topic.ID, userID, raw, o.now)
	post.PostNumber = number
	post.SortOrder = number
	if sortOrder != nil {
		post.SortOrder = *sortOrder
	}
	post.Cooked = text.Cook(raw)
	post.PostType = postType
	post.ReplyToPostNumber = replyTo
	if err := db.InsertPost(ctx, o.tx, post); err != nil {
		return nil, err
	}

	if postType == models.PostTypeRegular {
		topic.BumpedAt = o.now
	}
	if err := refreshStats(ctx, o.tx, topic); err != nil {
		return nil, err
	}
	topic.UpdatedAt = o.now
	if err := db.UpdateTopic(ctx, o.tx, topic); err != nil {
		return nil, err
	}

	if postType == models.PostTypeRegular {
		tu, err := loadTopicUser(ctx, o.tx, userID, topic.ID, o.now)
		if err != nil {
			return nil, err
		}
		tu.Posted = true
		if number > tu.LastReadPostNumber {
			tu.LastReadPostNumber = number
		}
		tu.SeenPostCount = topic.HighestPostNumber
		tu.UpdatedAt = o.now
		if err := db.UpsertTopicUser(ctx, o.tx, tu); err != nil {
			return nil, err
		}
	}
	return post, nil
}

// CreatePost replies to a topic.
func (s *Service) CreatePost(ctx context.Context, actor *models.User, topicID int64, raw string, replyTo *int) (*models.Post, error) {
	if actor == nil {
		return nil, ErrNotAllowed
	}
	if strings.TrimSpace(raw) == "" {
		return nil, invalid("raw", ErrBodyBlank, "")
	}

	var post *models.Post
	err := s.withTx(ctx, func(o *op) error {
		topic, err := s.visibleTopic(ctx, o.tx, actor, topicID)
		if err != nil {
			return err
		}
		if !actor.IsStaff() {
			if topic.Archived {
				return ErrTopicArchived
			}
			if topic.Closed {
				return ErrTopicClosed
			}
		}
		if replyTo != nil {
			if _, err := db.GetPostByNumber(ctx, o.tx, topic.ID, *replyTo); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrPostNotFound
				}
				return err
			}
		}

		post, err = s.appendPost(ctx, o, topic, actor.ID, raw, replyTo, models.PostTypeRegular, nil)
		if err != nil {
			return err
		}

		if topic.IsPrivateMessage() {
			allowed, err := db.ListAllowedUsers(ctx, o.tx, topic.ID)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(allowed))
			for _, u := range allowed {
				ids = append(ids, u.ID)
			}
			o.publish(notify.Event{
				Kind:       notify.KindPrivateMessage,
				TopicID:    topic.ID,
				TopicTitle: topic.Title,
				ActorID:    actor.ID,
				UserIDs:    ids,
				PostNumber: post.PostNumber,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdateTitle renames a topic. The creator or staff may rename.
func (s *Service) UpdateTitle(ctx context.Context, actor *models.User, topicID int64, title string) (*models.Topic, error) {
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrStaff(actor, topic); err != nil {
			return err
		}

		newTitle := s.PrepareTitle(title)
		if newTitle == topic.Title {
			return nil
		}
		if err := s.validateTitle(ctx, o.tx, newTitle, topic.Archetype, topic.ID); err != nil {
			return err
		}

		old := topic.Title
		topic.Title = newTitle
		topic.Slug = text.Slugify(newTitle)
		topic.FancyTitle = text.FancyTitle(newTitle)
		if err := s.recordRevision(ctx, o, topic, actor.ID, map[string][2]string{"title": {old, newTitle}}); err != nil {
			return err
		}
		if err := db.UpdateTopic(ctx, o.tx, topic); err != nil {
			return err
		}
		return s.reindex(ctx, o.tx, topic)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// ChangeCategory moves a regular topic to the named category. A blank name
// means uncategorized.
func (s *Service) ChangeCategory(ctx context.Context, actor *models.User, topicID int64, name string) (*models.Topic, error) {
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrStaff(actor, topic); err != nil {
			return err
		}
		if topic.IsPrivateMessage() {
			return ErrNotAllowed
		}

		cat, err := resolveCategory(ctx, o.tx, name)
		if err != nil {
			return err
		}
		if topic.CategoryID != nil && *topic.CategoryID == cat.ID {
			return nil
		}

		oldName := ""
		var oldID *int64
		if topic.CategoryID != nil {
			oldID = int64Ptr(*topic.CategoryID)
			if old, err := db.GetCategory(ctx, o.tx, *topic.CategoryID); err == nil {
				oldName = old.Name
			}
		}

		prev := autoCloseOf(topic)
		topic.CategoryID = &cat.ID
		if topic.AutoCloseAt == nil && !topic.Closed && cat.AutoCloseHours != nil && *cat.AutoCloseHours > 0 {
			setAutoClose(topic, o.now.Add(hoursDuration(*cat.AutoCloseHours)), db.SystemUserID, o.now)
		}
		if err := s.recordRevision(ctx, o, topic, actor.ID, map[string][2]string{"category": {oldName, cat.Name}}); err != nil {
			return err
		}
		if err := s.saveTopic(ctx, o, topic, prev); err != nil {
			return err
		}

		for _, id := range []*int64{oldID, &cat.ID} {
			if id == nil {
				continue
			}
			if _, err := db.RefreshCategoryTopicCount(ctx, o.tx, *id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// recordRevision increments the topic version and stores what changed.
func (s *Service) recordRevision(ctx context.Context, o *op, topic *models.Topic, userID int64, changes map[string][2]string) error {
	topic.Version++
	topic.UpdatedAt = o.now
	return db.CreateRevision(ctx, o.tx, &models.TopicRevision{
		TopicID:   topic.ID,
		UserID:    userID,
		Version:   topic.Version,
		Changes:   changes,
		CreatedAt: o.now,
	})
}

// Bump moves the topic's bump time without creating a new version.
func (s *Service) Bump(ctx context.Context, topicID int64, at time.Time) error {
	return s.withTx(ctx, func(o *op) error {
		topic, err := getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		topic.BumpedAt = at.UTC()
		return db.UpdateTopic(ctx, o.tx, topic)
	})
}

// UpdateMetaData merges kv into the topic's meta data. An empty value
// removes the key.
func (s *Service) UpdateMetaData(ctx context.Context, topicID int64, kv map[string]string) (*models.Topic, error) {
	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		if topic.MetaData == nil {
			topic.MetaData = map[string]string{}
		}
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if kv[k] == "" {
				delete(topic.MetaData, k)
			} else {
				topic.MetaData[k] = kv[k]
			}
		}
		topic.UpdatedAt = o.now
		return db.UpdateTopic(ctx, o.tx, topic)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// Revisions lists the versioned edits of a topic, oldest first.
func (s *Service) Revisions(ctx context.Context, topicID int64) ([]*models.TopicRevision, error) {
	if _, err := getTopic(ctx, s.db, topicID); err != nil {
		return nil, err
	}
	return db.ListRevisions(ctx, s.db, topicID)
}

// reindex refreshes the search entry of the topic from its title and first post.
func (s *Service) reindex(ctx context.Context, q db.DBTX, topic *models.Topic) error {
	if topic.IsDeleted() {
		return db.RemoveFromIndex(ctx, q, topic.ID)
	}
	raw := ""
	first, err := db.GetPostByNumber(ctx, q, topic.ID, 1)
	switch {
	case err == nil:
		raw = first.Raw
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}
	return db.IndexTopic(ctx, q, topic.ID, topic.Title, raw)
}

func loadTopicUser(ctx context.Context, q db.DBTX, userID, topicID int64, now time.Time) (*models.TopicUser, error) {
	tu, err := db.GetTopicUser(ctx, q, userID, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.TopicUser{UserID: userID, TopicID: topicID, UpdatedAt: now}, nil
	}
	return tu, err
}
