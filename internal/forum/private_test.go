// ABOUTME: Tests for visibility, private message participants and invites
// ABOUTME: Email invites are checked end to end through the memory mailer

package forum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
)

func TestCanSee(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, f.alice, "Welcome to the agora forum")
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		user  *models.User
		topic *models.Topic
		want  bool
	}{
		{"anonymous regular", nil, topic, true},
		{"anonymous private", nil, pm, false},
		{"participant", f.bob, pm, true},
		{"outsider", f.carol, pm, false},
		{"staff", f.admin, pm, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.svc.CanSee(f.ctx, tt.user, tt.topic)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestReadRestrictedCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateCategory(f.ctx, f.admin, NewCategoryParams{Name: "Staff", ReadRestricted: true})
	require.NoError(t, err)
	topic, err := f.svc.CreateTopic(f.ctx, f.admin, NewTopicParams{
		Title:    "Planning the next release",
		Raw:      "Internal notes",
		Category: "Staff",
	})
	require.NoError(t, err)

	_, err = f.svc.GetTopic(f.ctx, f.bob, topic.ID)
	assert.ErrorIs(t, err, ErrNotAllowed)
	list, err := f.svc.ListTopics(f.ctx, f.bob, ListOptions{Category: "Staff"})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.ListTopics(f.ctx, f.admin, ListOptions{Category: "Staff"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInviteExistingUser(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob"})
	require.NoError(t, err)

	_, err = f.svc.GetTopic(f.ctx, f.carol, pm.ID)
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = f.svc.Invite(f.ctx, f.carol, pm.ID, "carol")
	assert.ErrorIs(t, err, ErrNotAllowed)

	invite, err := f.svc.Invite(f.ctx, f.alice, pm.ID, "carol")
	require.NoError(t, err)
	assert.Nil(t, invite)
	_, err = f.svc.GetTopic(f.ctx, f.carol, pm.ID)
	assert.NoError(t, err)

	notes, err := f.svc.Notifications(f.ctx, f.carol, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationInvitedToPrivateMessage, notes[0].Type)
	assert.Contains(t, notes[0].Data, `"topic_title":"Hi"`)

	_, err = f.svc.Invite(f.ctx, f.alice, pm.ID, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInviteByKnownEmail(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob"})
	require.NoError(t, err)

	invite, err := f.svc.Invite(f.ctx, f.alice, pm.ID, "carol@example.com")
	require.NoError(t, err)
	assert.Nil(t, invite)
	assert.Empty(t, f.mailer.Sent())

	ok, err := f.svc.CanSee(f.ctx, f.carol, pm)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInviteToRegularTopic(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, f.alice, "Welcome to the agora forum")

	_, err := f.svc.Invite(f.ctx, f.alice, topic.ID, "bob")
	require.NoError(t, err)

	notes, err := f.svc.Notifications(f.ctx, f.bob, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationInvitedToTopic, notes[0].Type)

	allowed, err := f.svc.AllowedUsers(f.ctx, topic.ID)
	require.NoError(t, err)
	assert.Empty(t, allowed)
}

func TestInviteByEmailAndRedeem(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob"})
	require.NoError(t, err)

	invite, err := f.svc.Invite(f.ctx, f.alice, pm.ID, "dave@example.com")
	require.NoError(t, err)
	require.NotNil(t, invite)
	assert.NotEmpty(t, invite.InviteKey)
	assert.Equal(t, "dave@example.com", invite.Email)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "dave@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, invite.InviteKey)

	_, err = f.svc.RedeemInvite(f.ctx, invite.InviteKey, "bad name")
	assert.ErrorIs(t, err, ErrUsernameInvalid)
	_, err = f.svc.RedeemInvite(f.ctx, "no-such-key", "dave")
	assert.ErrorIs(t, err, ErrInviteNotFound)
	_, err = f.svc.RedeemInvite(f.ctx, invite.InviteKey, "bob")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	dave, err := f.svc.RedeemInvite(f.ctx, invite.InviteKey, "dave")
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", dave.Email)
	_, err = f.svc.GetTopic(f.ctx, dave, pm.ID)
	assert.NoError(t, err)

	_, err = f.svc.RedeemInvite(f.ctx, invite.InviteKey, "dave2")
	assert.ErrorIs(t, err, ErrInviteRedeemed)

	_, err = f.svc.InviteByEmail(f.ctx, f.alice, pm.ID, "not-an-email")
	assert.True(t, IsValidation(err))
}

func TestRedeemInviteForTakenEmail(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob"})
	require.NoError(t, err)
	invite, err := f.svc.Invite(f.ctx, f.alice, pm.ID, "erin@example.com")
	require.NoError(t, err)
	require.NotNil(t, invite)

	// The address signed up directly before the invite was redeemed.
	erin := f.user(t, NewUserParams{Username: "erin", Email: "Erin@Example.com"})

	_, err = f.svc.RedeemInvite(f.ctx, invite.InviteKey, "erin2")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.True(t, IsValidation(err))

	users, err := f.svc.Users(f.ctx)
	require.NoError(t, err)
	var withEmail []string
	for _, u := range users {
		if strings.EqualFold(u.Email, "erin@example.com") {
			withEmail = append(withEmail, u.Username)
		}
	}
	assert.Equal(t, []string{erin.Username}, withEmail)

	stored, err := db.GetInviteByKey(f.ctx, f.db, invite.InviteKey)
	require.NoError(t, err)
	assert.Nil(t, stored.RedeemedAt, "a failed redeem leaves the invite usable")
}

func TestCreateUserRejectsTakenEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateUser(f.ctx, NewUserParams{Username: "alice2", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.CreateUser(f.ctx, NewUserParams{Username: "noemail"})
	require.NoError(t, err)
	_, err = f.svc.CreateUser(f.ctx, NewUserParams{Username: "noemail2"})
	assert.NoError(t, err, "accounts without email never clash")
}

func TestRemoveAllowedUser(t *testing.T) {
	f := newFixture(t)
	pm, err := f.svc.CreatePrivateMessage(f.ctx, f.alice, "Hi", "hello bob", []string{"bob", "carol"})
	require.NoError(t, err)

	err = f.svc.RemoveAllowedUser(f.ctx, f.bob, pm.ID, "carol")
	assert.ErrorIs(t, err, ErrNotAllowed)

	require.NoError(t, f.svc.RemoveAllowedUser(f.ctx, f.alice, pm.ID, "carol"))
	_, err = f.svc.GetTopic(f.ctx, f.carol, pm.ID)
	assert.ErrorIs(t, err, ErrNotAllowed)

	err = f.svc.RemoveAllowedUser(f.ctx, f.alice, pm.ID, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)

	topic := f.topic(t, f.alice, "Welcome to the agora forum")
	err = f.svc.RemoveAllowedUser(f.ctx, f.alice, topic.ID, "bob")
	assert.ErrorIs(t, err, ErrNotAllowed)
}
