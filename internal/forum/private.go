// ABOUTME: Visibility rules, private message participants and invitations
// ABOUTME: Invites go to existing users directly or by email with a one-time key

package forum

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/models"
	"github.com/harper/agora/internal/notify"
)

// CanSee reports whether user may read topic.
func (s *Service) CanSee(ctx context.Context, user *models.User, topic *models.Topic) (bool, error) {
	return canSee(ctx, s.db, user, topic)
}

func canSee(ctx context.Context, q db.DBTX, user *models.User, topic *models.Topic) (bool, error) {
	if user.IsStaff() {
		return true, nil
	}
	if topic.IsDeleted() || !topic.Visible {
		return false, nil
	}
	if topic.IsPrivateMessage() {
		if user == nil {
			return false, nil
		}
		return db.IsAllowedUser(ctx, q, topic.ID, user.ID)
	}
	if topic.CategoryID != nil {
		cat, err := db.GetCategory(ctx, q, *topic.CategoryID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		if cat != nil && cat.ReadRestricted {
			return false, nil
		}
	}
	return true, nil
}

// visibleTopic loads a topic the user may read. Topics the user cannot see
// are reported as missing when deleted and as not allowed otherwise.
func (s *Service) visibleTopic(ctx context.Context, q db.DBTX, user *models.User, topicID int64) (*models.Topic, error) {
	topic, err := getTopic(ctx, q, topicID)
	if err != nil {
		return nil, err
	}
	ok, err := canSee(ctx, q, user, topic)
	if err != nil {
		return nil, err
	}
	if !ok {
		if topic.IsDeleted() {
			return nil, ErrTopicNotFound
		}
		return nil, ErrNotAllowed
	}
	return topic, nil
}

// AllowedUsers lists the participants of a private message.
func (s *Service) AllowedUsers(ctx context.Context, topicID int64) ([]*models.User, error) {
	if _, err := getTopic(ctx, s.db, topicID); err != nil {
		return nil, err
	}
	return db.ListAllowedUsers(ctx, s.db, topicID)
}

// Invite brings someone into a topic by username or email. It returns the
// invite when an email invitation was sent, nil when an existing user was
// added directly.
func (s *Service) Invite(ctx context.Context, inviter *models.User, topicID int64, usernameOrEmail string) (*models.Invite, error) {
	target := strings.TrimSpace(usernameOrEmail)
	if target == "" {
		return nil, ErrUserNotFound
	}

	var invite *models.Invite
	err := s.withTx(ctx, func(o *op) error {
		topic, err := s.inviteTarget(ctx, o.tx, inviter, topicID)
		if err != nil {
			return err
		}

		user, err := db.GetUserByUsername(ctx, o.tx, target)
		if errors.Is(err, sql.ErrNoRows) && looksLikeEmail(target) {
			user, err = db.GetUserByEmail(ctx, o.tx, target)
			if errors.Is(err, sql.ErrNoRows) {
				invite, err = s.inviteByEmail(ctx, o, inviter, topic, target)
				return err
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		kind := notify.KindInvitedToTopic
		if topic.IsPrivateMessage() {
			kind = notify.KindInvitedToPrivateMessage
			if err := db.AddAllowedUser(ctx, o.tx, topic.ID, user.ID, o.now); err != nil {
				return err
			}
		}
		o.publish(notify.Event{
			Kind:       kind,
			TopicID:    topic.ID,
			TopicTitle: topic.Title,
			ActorID:    inviter.ID,
			UserIDs:    []int64{user.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// InviteByEmail creates an invitation key for email and mails it.
func (s *Service) InviteByEmail(ctx context.Context, inviter *models.User, topicID int64, email string) (*models.Invite, error) {
	email = strings.TrimSpace(email)
	if !looksLikeEmail(email) {
		return nil, invalid("email", ErrUserNotFound, email)
	}
	var invite *models.Invite
	err := s.withTx(ctx, func(o *op) error {
		topic, err := s.inviteTarget(ctx, o.tx, inviter, topicID)
		if err != nil {
			return err
		}
		invite, err = s.inviteByEmail(ctx, o, inviter, topic, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *Service) inviteTarget(ctx context.Context, q db.DBTX, inviter *models.User, topicID int64) (*models.Topic, error) {
	if inviter == nil {
		return nil, ErrNotAllowed
	}
	return s.visibleTopic(ctx, q, inviter, topicID)
}

func (s *Service) inviteByEmail(ctx context.Context, o *op, inviter *models.User, topic *models.Topic, email string) (*models.Invite, error) {
	invite := models.NewInvite(email, inviter.ID, int64Ptr(topic.ID), o.now)
	if err := db.CreateInvite(ctx, o.tx, invite); err != nil {
		return nil, err
	}
	o.publish(notify.Event{
		Kind:       notify.KindInvitedByEmail,
		TopicID:    topic.ID,
		TopicTitle: topic.Title,
		ActorID:    inviter.ID,
		Email:      email,
		InviteKey:  invite.InviteKey,
	})
	return invite, nil
}

// RedeemInvite creates an account for the invited email and lets it into
// the invite's private message.
func (s *Service) RedeemInvite(ctx context.Context, key, username string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	var user *models.User
	err := s.withTx(ctx, func(o *op) error {
		invite, err := db.GetInviteByKey(ctx, o.tx, strings.TrimSpace(key))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInviteNotFound
		}
		if err != nil {
			return err
		}
		if invite.RedeemedAt != nil {
			return ErrInviteRedeemed
		}
		redeemed, err := db.RedeemInvite(ctx, o.tx, invite.ID, o.now)
		if err != nil {
			return err
		}
		if !redeemed {
			return ErrInviteRedeemed
		}

		user, err = s.createUser(ctx, o, NewUserParams{Username: username, Email: invite.Email})
		if err != nil {
			return err
		}
		if invite.TopicID == nil {
			return nil
		}
		topic, err := getTopic(ctx, o.tx, *invite.TopicID)
		if errors.Is(err, ErrTopicNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if topic.IsPrivateMessage() {
			return db.AddAllowedUser(ctx, o.tx, topic.ID, user.ID, o.now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveAllowedUser revokes a participant's access to a private message.
// Staff and the message creator may remove participants.
func (s *Service) RemoveAllowedUser(ctx context.Context, actor *models.User, topicID int64, username string) error {
	return s.withTx(ctx, func(o *op) error {
		topic, err := getTopic(ctx, o.tx, topicID)
		if err != nil {
			return err
		}
		if !topic.IsPrivateMessage() {
			return ErrNotAllowed
		}
		if err := requireOwnerOrStaff(actor, topic); err != nil {
			return err
		}
		user, err := getUserByUsername(ctx, o.tx, username)
		if err != nil {
			return err
		}
		removed, err := db.RemoveAllowedUser(ctx, o.tx, topic.ID, user.ID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrUserNotFound
		}
		return nil
	})
}

func looksLikeEmail(s string) bool {
	if !strings.Contains(s, "@") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
