// ABOUTME: Read paths, read tracking, categories, users and notifications
// ABOUTME: Listings are filtered through the same visibility rules as single reads

package forum

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/text"
)

// GetTopic returns a topic the viewer may read.
func (s *Service) GetTopic(ctx context.Context, viewer *models.User, topicID int64) (*models.Topic, error) {
	return s.visibleTopic(ctx, s.db, viewer, topicID)
}

// ResolveTopic finds a topic by numeric ID or slug.
func (s *Service) ResolveTopic(ctx context.Context, viewer *models.User, idOrSlug string) (*models.Topic, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		return s.GetTopic(ctx, viewer, id)
	}
	t, err := db.GetTopicBySlug(ctx, s.db, idOrSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTopicNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetTopic(ctx, viewer, t.ID)
}

// ListOptions narrows ListTopics.
type ListOptions struct {
	// Category is a category name; blank lists every category.
	Category        string
	IncludeArchived bool
	// PrivateMessages lists only the viewer's private messages.
	PrivateMessages bool
	Limit           int
}

// ListTopics lists the topics the viewer may read, pinned first then most
// recently bumped. Pins the viewer dismissed sort like any other topic.
func (s *Service) ListTopics(ctx context.Context, viewer *models.User, opts ListOptions) ([]*models.Topic, error) {
	f := db.TopicFilter{
		IncludeArchived:  opts.IncludeArchived,
		IncludeInvisible: viewer.IsStaff(),
	}
	if viewer != nil {
		f.AllowedUserID = int64Ptr(viewer.ID)
		f.ViewerID = int64Ptr(viewer.ID)
	}
	if opts.Category != "" {
		cat, err := resolveCategory(ctx, s.db, opts.Category)
		if err != nil {
			return nil, err
		}
		f.CategoryID = &cat.ID
	}

	topics, err := db.ListTopics(ctx, s.db, f)
	if err != nil {
		return nil, err
	}

	visible := make([]*models.Topic, 0, len(topics))
	for _, t := range topics {
		if opts.PrivateMessages != t.IsPrivateMessage() {
			continue
		}
		ok, err := canSee(ctx, s.db, viewer, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		visible = append(visible, t)
		if opts.Limit > 0 && len(visible) == opts.Limit {
			break
		}
	}
	return visible, nil
}

// ListPosts returns the posts of a topic in reading order.
func (s *Service) ListPosts(ctx context.Context, viewer *models.User, topicID int64) ([]*models.Post, error) {
	if _, err := s.GetTopic(ctx, viewer, topicID); err != nil {
		return nil, err
	}
	return db.ListPosts(ctx, s.db, topicID)
}

// MarkRead records that user has read up to postNumber. Read positions only
// move forward and never pass the last post.
func (s *Service) MarkRead(ctx context.Context, user *models.User, topicID int64, postNumber int) (*models.TopicUser, error) {
	if user == nil {
		return nil, ErrNotAllowed
	}
	var tu *models.TopicUser
	err := s.withTx(ctx, func(o *op) error {
		topic, err := s.visibleTopic(ctx, o.tx, user, topicID)
		if err != nil {
			return err
		}
		tu, err = loadTopicUser(ctx, o.tx, user.ID, topic.ID, o.now)
		if err != nil {
			return err
		}
		if postNumber > topic.HighestPostNumber {
			postNumber = topic.HighestPostNumber
		}
		if postNumber <= tu.LastReadPostNumber {
			return nil
		}
		tu.LastReadPostNumber = postNumber
		if postNumber > tu.SeenPostCount {
			tu.SeenPostCount = postNumber
		}
		tu.UpdatedAt = o.now
		return db.UpsertTopicUser(ctx, o.tx, tu)
	})
	if err != nil {
		return nil, err
	}
	return tu, nil
}

// TopicUser returns a user's state in a topic; users who never visited get
// an empty state.
func (s *Service) TopicUser(ctx context.Context, userID, topicID int64) (*models.TopicUser, error) {
	return loadTopicUser(ctx, s.db, userID, topicID, s.now().UTC())
}

// Categories lists every category.
func (s *Service) Categories(ctx context.Context) ([]*models.Category, error) {
	return db.ListCategories(ctx, s.db)
}

// NewCategoryParams describes a category to create.
type NewCategoryParams struct {
	Name           string
	Description    string
	AutoCloseHours *float64
	ReadRestricted bool
}

// CreateCategory adds a category. Staff only.
func (s *Service) CreateCategory(ctx context.Context, actor *models.User, p NewCategoryParams) (*models.Category, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, invalid("name", ErrTitleBlank, "")
	}
	if p.AutoCloseHours != nil && *p.AutoCloseHours < 0 {
		return nil, invalid("auto_close_hours", ErrInvalidAutoClose, "")
	}
	cat := &models.Category{
		Name:           name,
		Slug:           text.Slugify(name),
		Description:    p.Description,
		UserID:         actor.ID,
		AutoCloseHours: p.AutoCloseHours,
		ReadRestricted: p.ReadRestricted,
		CreatedAt:      s.now().UTC(),
	}
	err := s.withTx(ctx, func(o *op) error {
		if _, err := db.GetCategoryByName(ctx, o.tx, name); err == nil {
			return invalid("name", ErrTitleTaken, name)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return db.CreateCategory(ctx, o.tx, cat)
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// NewUserParams describes an account to create.
type NewUserParams struct {
	Username  string
	Email     string
	Admin     bool
	Moderator bool
}

// CreateUser adds an account.
func (s *Service) CreateUser(ctx context.Context, p NewUserParams) (*models.User, error) {
	if err := validateUsername(p.Username); err != nil {
		return nil, err
	}
	var user *models.User
	err := s.withTx(ctx, func(o *op) error {
		var err error
		user, err = s.createUser(ctx, o, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) createUser(ctx context.Context, o *op, p NewUserParams) (*models.User, error) {
	username := strings.TrimSpace(p.Username)
	if _, err := db.GetUserByUsername(ctx, o.tx, username); err == nil {
		return nil, invalid("username", ErrUsernameTaken, username)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	email := strings.TrimSpace(p.Email)
	if email != "" {
		if _, err := db.GetUserByEmail(ctx, o.tx, email); err == nil {
			return nil, invalid("email", ErrEmailTaken, email)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	user := &models.User{
		Username:  username,
		Email:     email,
		Admin:     p.Admin,
		Moderator: p.Moderator,
		CreatedAt: o.now,
	}
	if err := db.CreateUser(ctx, o.tx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Users lists every account.
func (s *Service) Users(ctx context.Context) ([]*models.User, error) {
	return db.ListUsers(ctx, s.db)
}

// UserByName finds an account by username.
func (s *Service) UserByName(ctx context.Context, username string) (*models.User, error) {
	return getUserByUsername(ctx, s.db, strings.TrimSpace(username))
}

// SetStaff grants or revokes staff flags. Admins only.
func (s *Service) SetStaff(ctx context.Context, actor *models.User, username string, admin, moderator bool) (*models.User, error) {
	if actor == nil || !actor.Admin {
		return nil, ErrNotStaff
	}
	var user *models.User
	err := s.withTx(ctx, func(o *op) error {
		var err error
		user, err = getUserByUsername(ctx, o.tx, username)
		if err != nil {
			return err
		}
		if err := db.SetUserStaff(ctx, o.tx, user.ID, admin, moderator); err != nil {
			return err
		}
		user.Admin, user.Moderator = admin, moderator
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Notifications lists a user's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, user *models.User, unreadOnly bool) ([]*models.Notification, error) {
	if user == nil {
		return nil, ErrNotAllowed
	}
	return db.ListNotifications(ctx, s.db, user.ID, unreadOnly)
}

// MarkNotificationsRead marks every notification of the user as read.
func (s *Service) MarkNotificationsRead(ctx context.Context, user *models.User) (int64, error) {
	if user == nil {
		return 0, ErrNotAllowed
	}
	return db.MarkNotificationsRead(ctx, s.db, user.ID)
}
