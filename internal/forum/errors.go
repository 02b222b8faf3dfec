// ABOUTME: Errors returned by forum operations
// ABOUTME: Sentinel errors plus ValidationError carrying the offending field

package forum

import (
	"errors"
	"fmt"
)

var (
	ErrTitleBlank       = errors.New("can't be blank")
	ErrTitleTooShort    = errors.New("is too short")
	ErrTitleTooLong     = errors.New("is too long")
	ErrTitleTaken       = errors.New("has already been used")
	ErrTitleQuality     = errors.New("seems unclear")
	ErrCategoryNotFound = errors.New("category not found")
	ErrBodyBlank        = errors.New("body can't be blank")
	ErrUsernameInvalid  = errors.New("username is invalid")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrEmailTaken       = errors.New("email already belongs to an account")
	ErrNoRecipients     = errors.New("private messages need at least one recipient")

	ErrTopicNotFound = errors.New("topic not found")
	ErrPostNotFound  = errors.New("post not found")
	ErrUserNotFound  = errors.New("user not found")

	ErrNotStaff      = errors.New("only staff can do that")
	ErrNotAllowed    = errors.New("not allowed")
	ErrTopicClosed   = errors.New("topic is closed")
	ErrTopicArchived = errors.New("topic is archived")
	ErrUnknownStatus = errors.New("unknown status")

	ErrPostNotInTopic      = errors.New("post does not belong to the topic")
	ErrNoPostsToMove       = errors.New("no posts to move")
	ErrCannotMoveFirstPost = errors.New("the first post can't be moved")
	ErrSameTopic           = errors.New("destination is the source topic")
	ErrMoveDestination     = errors.New("give either a new title or a destination topic")

	ErrInviteNotFound   = errors.New("invite not found")
	ErrInviteRedeemed   = errors.New("invite has already been redeemed")
	ErrInvalidAutoClose = errors.New("invalid auto-close time")
)

// ValidationError reports why a field was rejected. It unwraps to one of the
// sentinel errors above.
type ValidationError struct {
	Field  string
	Err    error
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s (%s)", e.Field, e.Err, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error, reason string) error {
	return &ValidationError{Field: field, Err: err, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
