// ABOUTME: Staff status toggles, moderator notes, pin dismissal and soft delete
// ABOUTME: Every status change leaves a moderator post in the topic

package forum

import (
	"context"
	"strings"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

// Topic statuses that staff can toggle.
const (
	StatusVisible    = "visible"
	StatusPinned     = "pinned"
	StatusArchived   = "archived"
	StatusClosed     = "closed"
	StatusAutoClosed = "autoclosed"
)

// Statuses lists the accepted status names.
var Statuses = []string{StatusVisible, StatusPinned, StatusArchived, StatusClosed, StatusAutoClosed}

var statusMessages = map[string][2]string{
	StatusVisible: {
		"This topic is now unlisted. It will no longer be displayed in any topic lists.",
		"This topic is now listed. It will be displayed in topic lists.",
	},
	StatusPinned: {
		"This topic is no longer pinned. It will no longer appear at the top of its category.",
		"This topic is now pinned. It will appear at the top of its category until it is unpinned by staff, or dismissed by each user.",
	},
	StatusArchived: {
		"This topic is no longer archived. It is no longer frozen, and can be changed.",
		"This topic is now archived. It is frozen and cannot be changed in any way.",
	},
	StatusClosed: {
		"This topic is now opened. New replies are allowed.",
		"This topic is now closed. New replies are no longer allowed.",
	},
}

func statusFlag(topic *models.Topic, status string) (*bool, bool) {
	switch status {
	case StatusVisible:
		return &topic.Visible, true
	case StatusPinned:
		return &topic.Pinned, true
	case StatusArchived:
		return &topic.Archived, true
	case StatusClosed, StatusAutoClosed:
		return &topic.Closed, true
	}
	return nil, false
}

// UpdateStatus sets a status flag on a topic and notes the change with a
// moderator post. Setting a flag to the value it already has does nothing.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.User, topicID int64, status string, enabled bool) (*models.Topic, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))

	var topic *models.Topic
	err := s.withTx(ctx, func(o *op) error {
		var err error
		topic, err = getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		flag, ok := statusFlag(topic, status)
		if !ok {
			return invalid("status", ErrUnknownStatus, status)
		}
		if *flag == enabled {
			return nil
		}

		message := statusMessage(status, enabled)
		if status == StatusAutoClosed && enabled {
			message = autoClosedMessage(topic, o.now)
		}

		prev := autoCloseOf(topic)
		*flag = enabled
		switch status {
		case StatusPinned:
			if enabled {
				topic.PinnedAt = timePtr(o.now)
			} else {
				topic.PinnedAt = nil
			}
		case StatusClosed, StatusAutoClosed:
			if enabled {
				clearAutoClose(topic)
			}
		}
		if err := s.saveTopic(ctx, o, topic, prev); err != nil {
			return err
		}
		if status == StatusVisible && topic.CategoryID != nil {
			if _, err := db.RefreshCategoryTopicCount(ctx, o.tx, *topic.CategoryID); err != nil {
				return err
			}
		}

		if _, err := s.appendPost(ctx, o, topic, actor.ID, message, nil, models.PostTypeModeratorAction, nil); err != nil {
			return err
		}
		o.publish(notify.Event{
			Kind:       notify.KindStatusChanged,
			TopicID:    topic.ID,
			TopicTitle: topic.Title,
			ActorID:    actor.ID,
			Status:     status,
			Enabled:    enabled,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func statusMessage(status string, enabled bool) string {
	if status == StatusAutoClosed {
		status = StatusClosed
	}
	msgs := statusMessages[status]
	if enabled {
		return msgs[1]
	}
	return msgs[0]
}

// AddModeratorPost adds a staff note to a topic without bumping it. sortOrder
// places the note at a given reading position.
func (s *Service) AddModeratorPost(ctx context.Context, actor *models.User, topicID int64, message string, sortOrder *int) (*models.Post, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, invalid("raw", ErrBodyBlank, "")
	}
	var post *models.Post
	err := s.withTx(ctx, func(o *op) error {
		topic, err := getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		post, err = s.appendPost(ctx, o, topic, actor.ID, message, nil, models.PostTypeModeratorAction, sortOrder)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ClearPin dismisses a pinned topic for one user.
func (s *Service) ClearPin(ctx context.Context, user *models.User, topicID int64) error {
	if user == nil {
		return ErrNotAllowed
	}
	return s.withTx(ctx, func(o *op) error {
		topic, err := s.visibleTopic(ctx, o.tx, user, topicID)
		if err != nil {
			return err
		}
		if !topic.Pinned {
			return nil
		}
		tu, err := loadTopicUser(ctx, o.tx, user.ID, topic.ID, o.now)
		if err != nil {
			return err
		}
		tu.ClearedPinnedAt = timePtr(o.now)
		tu.UpdatedAt = o.now
		return db.UpsertTopicUser(ctx, o.tx, tu)
	})
}

// Trash soft-deletes a topic. The creator or staff may trash.
func (s *Service) Trash(ctx context.Context, actor *models.User, topicID int64) (*models.Topic, error) {
	return s.setDeleted(ctx, actor, topicID, true)
}

// Recover restores a trashed topic.
func (s *Service) Recover(ctx context.Context, actor *models.User, topicID int64) (*models.Topic, error) {
	return s.setDeleted(ctx, actor, topicID, false)
}

func (s *Service) setDeleted(ctx context.Context, actor *models.User, topicID int64, deleted bool) (*models.Topic, error) {
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
		if topic.IsDeleted() == deleted {
			return nil
		}

		prev := autoCloseOf(topic)
		if deleted {
			topic.DeletedAt = timePtr(o.now)
			topic.DeletedByID = int64Ptr(actor.ID)
			clearAutoClose(topic)
		} else {
			topic.DeletedAt = nil
			topic.DeletedByID = nil
		}
		if err := s.saveTopic(ctx, o, topic, prev); err != nil {
			return err
		}
		if err := s.reindex(ctx, o.tx, topic); err != nil {
			return err
		}
		if topic.CategoryID != nil {
			if _, err := db.RefreshCategoryTopicCount(ctx, o.tx, *topic.CategoryID); err != nil {
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
