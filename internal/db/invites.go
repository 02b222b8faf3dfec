// ABOUTME: Invite database operations
// ABOUTME: Email invitations keyed by a random token

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/agora/internal/models"
)

const inviteColumns = `id, invite_key, email, invited_by_id, topic_id, created_at, redeemed_at`

// CreateInvite inserts an invite and sets its ID.
func CreateInvite(ctx context.Context, q DBTX, inv *models.Invite) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO invites (invite_key, email, invited_by_id, topic_id, created_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inv.InviteKey, inv.Email, inv.InvitedByID, inv.TopicID, inv.CreatedAt.UTC(), utcPtr(inv.RedeemedAt))
	if err != nil {
		return fmt.Errorf("insert invite for %s: %w", inv.Email, err)
	}
	inv.ID, err = res.LastInsertId()
	return err
}

// GetInviteByKey retrieves an invite by its key.
func GetInviteByKey(ctx context.Context, q DBTX, key string) (*models.Invite, error) {
	var inv models.Invite
	err := q.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE invite_key = ?`, key).
		Scan(&inv.ID, &inv.InviteKey, &inv.Email, &inv.InvitedByID, &inv.TopicID, &inv.CreatedAt, &inv.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// RedeemInvite marks an unredeemed invite as used. It reports false when the
// invite was already redeemed.
func RedeemInvite(ctx context.Context, q DBTX, id int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `UPDATE invites SET redeemed_at = ? WHERE id = ? AND redeemed_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
