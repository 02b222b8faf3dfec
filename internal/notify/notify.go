// ABOUTME: Domain events published by the forum and the observers that react
// ABOUTME: Notifier turns events into notification rows and invite mails

package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/agora/internal/db"
	"github.com/harper/agora/internal/logger"
	"github.com/harper/agora/internal/models"
)

// Kind names what happened.
type Kind string

const (
	KindTopicCreated            Kind = "topic_created"
	KindPrivateMessage          Kind = "private_message"
	KindInvitedToPrivateMessage Kind = "invited_to_private_message"
	KindInvitedToTopic          Kind = "invited_to_topic"
	KindInvitedByEmail          Kind = "invited_by_email"
	KindPostsMoved              Kind = "posts_moved"
	KindStatusChanged           Kind = "status_changed"
)

// Event is published after a forum transaction commits.
type Event struct {
	Kind       Kind
	TopicID    int64
	TopicTitle string
	ActorID    int64
	UserIDs    []int64
	Email      string
	InviteKey  string
	PostNumber int
	Status     string
	Enabled    bool
	At         time.Time
}

// Observer reacts to forum events. Errors are logged by the publisher and
// never undo the committed change.
type Observer interface {
	Notify(ctx context.Context, e Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event) error

// Notify calls f.
func (f ObserverFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Notifier stores notifications for users and mails email invites.
type Notifier struct {
	db     *sql.DB
	mailer Mailer
	log    logger.Logger
}

// NewNotifier creates a Notifier. A nil mailer logs instead of sending.
func NewNotifier(database *sql.DB, mailer Mailer, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(log)
	}
	return &Notifier{db: database, mailer: mailer, log: log}
}

// notificationType maps event kinds that address users to stored types.
var notificationType = map[Kind]string{
	KindPrivateMessage:          models.NotificationPrivateMessage,
	KindInvitedToPrivateMessage: models.NotificationInvitedToPrivateMessage,
	KindInvitedToTopic:          models.NotificationInvitedToTopic,
	KindPostsMoved:              models.NotificationMovedPost,
}

// Notify implements Observer.
func (n *Notifier) Notify(ctx context.Context, e Event) error {
	if e.Kind == KindInvitedByEmail {
		return n.mailInvite(ctx, e)
	}

	typ, ok := notificationType[e.Kind]
	if !ok {
		return nil
	}
	data, err := json.Marshal(map[string]any{
		"topic_title": e.TopicTitle,
		"actor_id":    e.ActorID,
	})
	if err != nil {
		return err
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	for _, uid := range e.UserIDs {
		if uid == e.ActorID {
			continue
		}
		topicID := e.TopicID
		row := &models.Notification{
			UserID:    uid,
			Type:      typ,
			TopicID:   &topicID,
			Data:      string(data),
			CreatedAt: at,
		}
		if e.PostNumber > 0 {
			pn := e.PostNumber
			row.PostNumber = &pn
		}
		if err := db.CreateNotification(ctx, n.db, row); err != nil {
			return fmt.Errorf("notify user %d: %w", uid, err)
		}
	}
	n.log.Debug("notifications written",
		logger.String("kind", string(e.Kind)),
		logger.Int64("topic_id", e.TopicID),
		logger.Int("users", len(e.UserIDs)))
	return nil
}

func (n *Notifier) mailInvite(ctx context.Context, e Event) error {
	msg := Message{
		To:      e.Email,
		Subject: fmt.Sprintf("You are invited to %q", e.TopicTitle),
		Body: fmt.Sprintf("You have been invited to join the conversation %q.\n\nRedeem with: agora redeem %s <username>\n",
			e.TopicTitle, e.InviteKey),
	}
	return n.mailer.Send(ctx, msg)
}
