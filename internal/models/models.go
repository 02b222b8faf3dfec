// ABOUTME: Core data models for users, categories, topics, posts and read state
// ABOUTME: Provides constructor functions and small derived helpers

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Archetypes of a topic.
const (
	ArchetypeRegular        = "regular"
	ArchetypePrivateMessage = "private_message"
)

// PostType distinguishes user posts from staff action notes.
type PostType int

const (
	PostTypeRegular         PostType = 1
	PostTypeModeratorAction PostType = 2
)

// MaxFeaturedUsers is how many posters a topic features.
const MaxFeaturedUsers = 4

// User is a forum account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Admin     bool      `json:"admin"`
	Moderator bool      `json:"moderator"`
	CreatedAt time.Time `json:"created_at"`
}

// IsStaff reports whether the user may moderate.
func (u *User) IsStaff() bool {
	return u != nil && (u.Admin || u.Moderator)
}

// Category groups regular topics.
type Category struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description"`
	UserID         int64     `json:"user_id"`
	TopicCount     int       `json:"topic_count"`
	AutoCloseHours *float64  `json:"auto_close_hours,omitempty"`
	ReadRestricted bool      `json:"read_restricted"`
	CreatedAt      time.Time `json:"created_at"`
}

// Topic is a discussion thread owning an ordered sequence of posts.
type Topic struct {
	ID                  int64             `json:"id"`
	Title               string            `json:"title"`
	FancyTitle          string            `json:"fancy_title"`
	Slug                string            `json:"slug"`
	CategoryID          *int64            `json:"category_id,omitempty"`
	UserID              int64             `json:"user_id"`
	LastPostUserID      int64             `json:"last_post_user_id"`
	Archetype           string            `json:"archetype"`
	Visible             bool              `json:"visible"`
	Pinned              bool              `json:"pinned"`
	PinnedAt            *time.Time        `json:"pinned_at,omitempty"`
	Closed              bool              `json:"closed"`
	Archived            bool              `json:"archived"`
	PostsCount          int               `json:"posts_count"`
	HighestPostNumber   int               `json:"highest_post_number"`
	ModeratorPostsCount int               `json:"moderator_posts_count"`
	ReplyCount          int               `json:"reply_count"`
	LikeCount           int               `json:"like_count"`
	StarCount           int               `json:"star_count"`
	FeaturedUserIDs     []int64           `json:"featured_user_ids"`
	Version             int               `json:"version"`
	LastPostedAt        *time.Time        `json:"last_posted_at,omitempty"`
	BumpedAt            time.Time         `json:"bumped_at"`
	AutoCloseAt         *time.Time        `json:"auto_close_at,omitempty"`
	AutoCloseUserID     *int64            `json:"auto_close_user_id,omitempty"`
	AutoCloseStartedAt  *time.Time        `json:"auto_close_started_at,omitempty"`
	MetaData            map[string]string `json:"meta_data,omitempty"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty"`
	DeletedByID         *int64            `json:"deleted_by_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewTopic creates an unsaved regular topic owned by userID.
func NewTopic(title string, userID int64, now time.Time) *Topic {
	now = now.UTC()
	return &Topic{
		Title:          title,
		UserID:         userID,
		LastPostUserID: userID,
		Archetype:      ArchetypeRegular,
		Visible:        true,
		Version:        1,
		BumpedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
		MetaData:       map[string]string{},
	}
}

// IsPrivateMessage reports whether the topic is a private conversation.
func (t *Topic) IsPrivateMessage() bool {
	return t.Archetype == ArchetypePrivateMessage
}

// IsDeleted reports whether the topic was trashed.
func (t *Topic) IsDeleted() bool {
	return t.DeletedAt != nil
}

// RelativeURL is the canonical path of the topic.
func (t *Topic) RelativeURL() string {
	return fmt.Sprintf("/t/%s/%d", t.Slug, t.ID)
}

// PostURL is the path of a post within the topic.
func (t *Topic) PostURL(postNumber int) string {
	return fmt.Sprintf("%s/%d", t.RelativeURL(), postNumber)
}

// AgeInDays returns whole days since creation.
func (t *Topic) AgeInDays(now time.Time) int {
	return int(now.Sub(t.CreatedAt).Hours() / 24)
}

// HasMetaDataBoolean reports whether a meta data key holds "true".
func (t *Topic) HasMetaDataBoolean(key string) bool {
	return t.MetaData[key] == "true"
}

// Post is a single message within a topic.
type Post struct {
	ID                int64      `json:"id"`
	TopicID           int64      `json:"topic_id"`
	UserID            int64      `json:"user_id"`
	PostNumber        int        `json:"post_number"`
	SortOrder         int        `json:"sort_order"`
	Raw               string     `json:"raw"`
	Cooked            string     `json:"cooked"`
	PostType          PostType   `json:"post_type"`
	ReplyToPostNumber *int       `json:"reply_to_post_number,omitempty"`
	LikeCount         int        `json:"like_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// NewPost creates an unsaved regular post.
func NewPost(topicID, userID int64, raw string, now time.Time) *Post {
	now = now.UTC()
	return &Post{
		TopicID:   topicID,
		UserID:    userID,
		Raw:       raw,
		PostType:  PostTypeRegular,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsModeratorAction reports whether the post records a staff action.
func (p *Post) IsModeratorAction() bool {
	return p.PostType == PostTypeModeratorAction
}

// TopicUser is a user's per-topic state.
type TopicUser struct {
	UserID             int64      `json:"user_id"`
	TopicID            int64      `json:"topic_id"`
	Posted             bool       `json:"posted"`
	Starred            bool       `json:"starred"`
	StarredAt          *time.Time `json:"starred_at,omitempty"`
	LastReadPostNumber int        `json:"last_read_post_number"`
	SeenPostCount      int        `json:"seen_post_count"`
	ClearedPinnedAt    *time.Time `json:"cleared_pinned_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Invite lets someone without an account join a topic by email.
type Invite struct {
	ID          int64      `json:"id"`
	InviteKey   string     `json:"invite_key"`
	Email       string     `json:"email"`
	InvitedByID int64      `json:"invited_by_id"`
	TopicID     *int64     `json:"topic_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
}

// NewInvite creates an unsaved invite with a random key.
func NewInvite(email string, invitedBy int64, topicID *int64, now time.Time) *Invite {
	return &Invite{
		InviteKey:   uuid.NewString(),
		Email:       email,
		InvitedByID: invitedBy,
		TopicID:     topicID,
		CreatedAt:   now.UTC(),
	}
}

// Notification types.
const (
	NotificationPrivateMessage          = "private_message"
	NotificationInvitedToPrivateMessage = "invited_to_private_message"
	NotificationInvitedToTopic          = "invited_to_topic"
	NotificationMovedPost               = "moved_post"
)

// Notification tells a user something happened.
type Notification struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Type       string    `json:"type"`
	TopicID    *int64    `json:"topic_id,omitempty"`
	PostNumber *int      `json:"post_number,omitempty"`
	Data       string    `json:"data"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// TopicRevision records what a versioned edit changed.
type TopicRevision struct {
	ID        int64                `json:"id"`
	TopicID   int64                `json:"topic_id"`
	UserID    int64                `json:"user_id"`
	Version   int                  `json:"version"`
	Changes   map[string][2]string `json:"changes"`
	CreatedAt time.Time            `json:"created_at"`
}
