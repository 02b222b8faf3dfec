// ABOUTME: Tests for forum data models
// ABOUTME: Verifies constructors and derived helpers

package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTopic(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	topic := NewTopic("Welcome to the forum", 3, now)

	if topic.Archetype != ArchetypeRegular {
		t.Errorf("expected regular archetype, got '%s'", topic.Archetype)
	}
	if !topic.Visible {
		t.Error("expected new topic to be visible")
	}
	if topic.Version != 1 {
		t.Errorf("expected version 1, got %d", topic.Version)
	}
	if !topic.BumpedAt.Equal(now) {
		t.Errorf("expected bumped_at %v, got %v", now, topic.BumpedAt)
	}
	if topic.LastPostUserID != 3 {
		t.Errorf("expected last poster 3, got %d", topic.LastPostUserID)
	}
}

func TestTopicURLs(t *testing.T) {
	topic := &Topic{ID: 42, Slug: "hello-world"}
	if got := topic.RelativeURL(); got != "/t/hello-world/42" {
		t.Errorf("unexpected url '%s'", got)
	}
	if got := topic.PostURL(3); got != "/t/hello-world/42/3" {
		t.Errorf("unexpected post url '%s'", got)
	}
}

func TestTopicAgeAndMetaData(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	topic := &Topic{CreatedAt: created, MetaData: map[string]string{"wiki": "true", "poll": "no"}}

	if got := topic.AgeInDays(created.Add(72 * time.Hour)); got != 3 {
		t.Errorf("expected 3 days, got %d", got)
	}
	if !topic.HasMetaDataBoolean("wiki") {
		t.Error("expected wiki flag")
	}
	if topic.HasMetaDataBoolean("poll") || topic.HasMetaDataBoolean("missing") {
		t.Error("expected non-true values to be false")
	}
}

func TestIsStaff(t *testing.T) {
	var nobody *User
	if nobody.IsStaff() {
		t.Error("nil user is not staff")
	}
	if (&User{}).IsStaff() {
		t.Error("plain user is not staff")
	}
	if !(&User{Moderator: true}).IsStaff() || !(&User{Admin: true}).IsStaff() {
		t.Error("admins and moderators are staff")
	}
}

func TestNewInvite(t *testing.T) {
	topicID := int64(9)
	invite := NewInvite("ed@example.com", 2, &topicID, time.Now())

	if _, err := uuid.Parse(invite.InviteKey); err != nil {
		t.Errorf("expected uuid invite key, got '%s'", invite.InviteKey)
	}
	if invite.RedeemedAt != nil {
		t.Error("new invite should not be redeemed")
	}
}

func TestNewPost(t *testing.T) {
	post := NewPost(1, 2, "hello", time.Now())
	if post.PostType != PostTypeRegular || post.IsModeratorAction() {
		t.Error("expected a regular post")
	}
}
