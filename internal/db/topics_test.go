// ABOUTME: Tests for topic, post and read-state database operations
// ABOUTME: Verifies round trips, filters and aggregate statistics

package db

import (
	"context"
	"testing"
	"time"

	"github.com/harper/agora/internal/models"
)

func TestInsertAndGetTopic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")

	topic := models.NewTopic("Where should we meet this year", u.ID, time.Now())
	topic.Slug = "where-should-we-meet-this-year"
	topic.FeaturedUserIDs = []int64{3, 4}
	topic.MetaData["source"] = "cli"
	if err := InsertTopic(ctx, db, topic); err != nil {
		t.Fatalf("InsertTopic failed: %v", err)
	}

	got, err := GetTopic(ctx, db, topic.ID)
	if err != nil {
		t.Fatalf("GetTopic failed: %v", err)
	}
	if got.Title != topic.Title || got.Version != 1 || !got.Visible {
		t.Errorf("unexpected topic: %+v", got)
	}
	if len(got.FeaturedUserIDs) != 2 || got.FeaturedUserIDs[1] != 4 {
		t.Errorf("featured users not round tripped: %v", got.FeaturedUserIDs)
	}
	if got.MetaData["source"] != "cli" {
		t.Errorf("meta data not round tripped: %v", got.MetaData)
	}
	if !got.BumpedAt.Equal(topic.BumpedAt) {
		t.Errorf("bumped_at %v != %v", got.BumpedAt, topic.BumpedAt)
	}

	bySlug, err := GetTopicBySlug(ctx, db, topic.Slug)
	if err != nil {
		t.Fatalf("GetTopicBySlug failed: %v", err)
	}
	if bySlug.ID != topic.ID {
		t.Errorf("expected topic %d by slug, got %d", topic.ID, bySlug.ID)
	}
}

func TestUpdateTopicNullableColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")
	topic := createTestTopic(t, db, "Nullable columns survive updates", u.ID)

	closeAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	topic.AutoCloseAt = &closeAt
	topic.AutoCloseUserID = &u.ID
	if err := UpdateTopic(ctx, db, topic); err != nil {
		t.Fatalf("UpdateTopic failed: %v", err)
	}
	got, _ := GetTopic(ctx, db, topic.ID)
	if got.AutoCloseAt == nil || !got.AutoCloseAt.Equal(closeAt) {
		t.Fatalf("auto_close_at not stored: %v", got.AutoCloseAt)
	}

	got.AutoCloseAt = nil
	got.AutoCloseUserID = nil
	if err := UpdateTopic(ctx, db, got); err != nil {
		t.Fatalf("UpdateTopic failed: %v", err)
	}
	again, _ := GetTopic(ctx, db, topic.ID)
	if again.AutoCloseAt != nil || again.AutoCloseUserID != nil {
		t.Errorf("expected cleared auto close, got %v %v", again.AutoCloseAt, again.AutoCloseUserID)
	}

	missing := *again
	missing.ID = 9999
	if err := UpdateTopic(ctx, db, &missing); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListTopicsFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")
	other := createTestUser(t, db, "dylan")

	now := time.Now()
	old := models.NewTopic("An older regular topic", u.ID, now.Add(-time.Hour))
	old.Slug = "old"
	newer := models.NewTopic("A newer regular topic", u.ID, now)
	newer.Slug = "newer"
	pinned := models.NewTopic("A pinned regular topic", u.ID, now.Add(-2*time.Hour))
	pinned.Slug = "pinned"
	pinned.Pinned = true
	pinnedAt := now.Add(-2 * time.Hour)
	pinned.PinnedAt = &pinnedAt
	archived := models.NewTopic("An archived regular topic", u.ID, now)
	archived.Slug = "archived"
	archived.Archived = true
	pm := models.NewTopic("A private conversation", u.ID, now)
	pm.Slug = "pm"
	pm.Archetype = models.ArchetypePrivateMessage
	for _, topic := range []*models.Topic{old, newer, pinned, archived, pm} {
		if err := InsertTopic(ctx, db, topic); err != nil {
			t.Fatalf("InsertTopic failed: %v", err)
		}
	}
	if err := AddAllowedUser(ctx, db, pm.ID, other.ID, now); err != nil {
		t.Fatalf("AddAllowedUser failed: %v", err)
	}

	got, err := ListTopics(ctx, db, TopicFilter{})
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	wantOrder := []int64{pinned.ID, newer.ID, old.ID}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d topics, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: expected topic %d, got %d", i, id, got[i].ID)
		}
	}

	withArchived, _ := ListTopics(ctx, db, TopicFilter{IncludeArchived: true})
	if len(withArchived) != 4 {
		t.Errorf("expected 4 topics including archived, got %d", len(withArchived))
	}

	forOther, _ := ListTopics(ctx, db, TopicFilter{AllowedUserID: &other.ID})
	if len(forOther) != 4 {
		t.Errorf("expected participant to see the private message, got %d topics", len(forOther))
	}

	limited, _ := ListTopics(ctx, db, TopicFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != pinned.ID {
		t.Errorf("expected limit to keep the pinned topic first")
	}

	cleared := now
	tu := &models.TopicUser{UserID: u.ID, TopicID: pinned.ID, ClearedPinnedAt: &cleared, UpdatedAt: now}
	if err := UpsertTopicUser(ctx, db, tu); err != nil {
		t.Fatalf("UpsertTopicUser failed: %v", err)
	}
	dismissed, err := ListTopics(ctx, db, TopicFilter{ViewerID: &u.ID})
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(dismissed) != 3 || dismissed[0].ID != newer.ID || dismissed[2].ID != pinned.ID {
		t.Errorf("expected a dismissed pin to sort by bump time")
	}
	otherView, _ := ListTopics(ctx, db, TopicFilter{ViewerID: &other.ID})
	if len(otherView) == 0 || otherView[0].ID != pinned.ID {
		t.Errorf("expected the pin to stay first for viewers who kept it")
	}
}

func TestTitleExists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")
	topic := createTestTopic(t, db, "Duplicate Titles Are Rejected", u.ID)

	exists, err := TitleExists(ctx, db, "duplicate titles are rejected", 0)
	if err != nil {
		t.Fatalf("TitleExists failed: %v", err)
	}
	if !exists {
		t.Error("expected case-insensitive clash")
	}
	exists, _ = TitleExists(ctx, db, "duplicate titles are rejected", topic.ID)
	if exists {
		t.Error("a topic must not clash with itself")
	}
}

func TestPostsAndStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	topic := createTestTopic(t, db, "Counting posts in a topic", alice.ID)

	now := time.Now()
	authors := []int64{alice.ID, bob.ID, carol.ID, bob.ID}
	for i, uid := range authors {
		p := models.NewPost(topic.ID, uid, "body", now.Add(time.Duration(i)*time.Minute))
		p.PostNumber = i + 1
		p.SortOrder = i + 1
		p.LikeCount = 1
		if i == 3 {
			reply := 2
			p.ReplyToPostNumber = &reply
		}
		if err := InsertPost(ctx, db, p); err != nil {
			t.Fatalf("InsertPost failed: %v", err)
		}
	}
	note := models.NewPost(topic.ID, SystemUserID, "closed", now.Add(time.Hour))
	note.PostType = models.PostTypeModeratorAction
	note.PostNumber = 5
	note.SortOrder = 5
	if err := InsertPost(ctx, db, note); err != nil {
		t.Fatalf("InsertPost failed: %v", err)
	}

	stats, err := TopicPostStats(ctx, db, topic.ID)
	if err != nil {
		t.Fatalf("TopicPostStats failed: %v", err)
	}
	if stats.PostsCount != 5 || stats.HighestPostNumber != 5 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.ModeratorPostsCount != 1 || stats.ReplyCount != 1 || stats.LikeCount != 4 {
		t.Errorf("unexpected aggregates: %+v", stats)
	}
	if stats.LastPostUserID != bob.ID || stats.LastPostedAt == nil {
		t.Errorf("expected bob as last regular poster, got %d", stats.LastPostUserID)
	}

	posters, err := RecentPosters(ctx, db, topic.ID, []int64{alice.ID}, 4)
	if err != nil {
		t.Fatalf("RecentPosters failed: %v", err)
	}
	if len(posters) != 2 || posters[0] != bob.ID || posters[1] != carol.ID {
		t.Errorf("unexpected recent posters: %v", posters)
	}

	posts, _ := ListPosts(ctx, db, topic.ID)
	if len(posts) != 5 || !posts[4].IsModeratorAction() {
		t.Fatalf("expected 5 posts ending with the note, got %d", len(posts))
	}
	next, _ := NextPostNumber(ctx, db, topic.ID)
	if next != 6 {
		t.Errorf("expected next post number 6, got %d", next)
	}

	moved := posts[1]
	moved.PostNumber = 9
	moved.SortOrder = 9
	moved.ReplyToPostNumber = nil
	if err := UpdatePostPlacement(ctx, db, moved); err != nil {
		t.Fatalf("UpdatePostPlacement failed: %v", err)
	}
	got, _ := GetPostByNumber(ctx, db, topic.ID, 9)
	if got == nil || got.ID != moved.ID {
		t.Errorf("expected post to be renumbered")
	}
}

func TestTopicUsers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")
	topic := createTestTopic(t, db, "Tracking who read what", u.ID)

	starredAt := time.Now()
	tu := &models.TopicUser{UserID: u.ID, TopicID: topic.ID, Starred: true, StarredAt: &starredAt,
		LastReadPostNumber: 7, SeenPostCount: 7, UpdatedAt: time.Now()}
	if err := UpsertTopicUser(ctx, db, tu); err != nil {
		t.Fatalf("UpsertTopicUser failed: %v", err)
	}
	tu.Posted = true
	if err := UpsertTopicUser(ctx, db, tu); err != nil {
		t.Fatalf("second UpsertTopicUser failed: %v", err)
	}

	stars, _ := CountStars(ctx, db, topic.ID)
	if stars != 1 {
		t.Errorf("expected 1 star, got %d", stars)
	}

	if err := ClampLastRead(ctx, db, topic.ID, 3); err != nil {
		t.Fatalf("ClampLastRead failed: %v", err)
	}
	got, err := GetTopicUser(ctx, db, u.ID, topic.ID)
	if err != nil {
		t.Fatalf("GetTopicUser failed: %v", err)
	}
	if !got.Posted || got.LastReadPostNumber != 3 || got.SeenPostCount != 3 {
		t.Errorf("unexpected topic user: %+v", got)
	}

	all, _ := ListTopicUsers(ctx, db, topic.ID)
	if len(all) != 1 {
		t.Errorf("expected 1 topic user, got %d", len(all))
	}
}

func TestSearchTopics(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "harper")

	tea := createTestTopic(t, db, "Brewing green tea at home", u.ID)
	coffee := createTestTopic(t, db, "Roasting coffee beans", u.ID)
	closed := createTestTopic(t, db, "Closed thread about tea", u.ID)
	closed.Closed = true
	if err := UpdateTopic(ctx, db, closed); err != nil {
		t.Fatalf("UpdateTopic failed: %v", err)
	}
	for _, topic := range []*models.Topic{tea, coffee, closed} {
		if err := IndexTopic(ctx, db, topic.ID, topic.Title, "some body text"); err != nil {
			t.Fatalf("IndexTopic failed: %v", err)
		}
	}

	got, err := SearchTopics(ctx, db, `tea "kettle" (AND)`, SearchFilter{Limit: 5})
	if err != nil {
		t.Fatalf("SearchTopics failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != tea.ID {
		t.Errorf("expected only the open tea topic, got %d results", len(got))
	}

	if err := RemoveFromIndex(ctx, db, tea.ID); err != nil {
		t.Fatalf("RemoveFromIndex failed: %v", err)
	}
	got, _ = SearchTopics(ctx, db, "tea", SearchFilter{})
	if len(got) != 0 {
		t.Errorf("expected no results after removal, got %d", len(got))
	}
}

func TestAnyTermQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a an", ""},
		{`Tea "time" tea`, `"tea" OR "time"`},
		{"NEAR(foo bar)", `"near" OR "foo" OR "bar"`},
	}
	for _, tt := range tests {
		if got := anyTermQuery(tt.in); got != tt.want {
			t.Errorf("anyTermQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
