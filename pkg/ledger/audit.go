package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
)

// audit appends an entry. A nil actor is recorded as System.
func (l *Ledger) audit(ctx context.Context, tx store.Tx, pundID, actor uuid.UUID, action models.AuditAction, format string, args ...any) error {
	entry := &models.AuditLogEntry{
		ID:              uuid.New(),
		PundID:          pundID,
		Action:          action,
		Description:     fmt.Sprintf(format, args...),
		PerformedByName: models.SystemActor,
		Timestamp:       l.clock(),
	}
	if actor != uuid.Nil {
		user, err := tx.GetUser(ctx, actor)
		if err != nil {
			return fmt.Errorf("failed to resolve audit actor: %w", err)
		}
		id := actor
		entry.PerformedByID = &id
		entry.PerformedByName = displayName(user)
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return err
	}
	return nil
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// AuditLogs returns the audit trail of a pund, newest first. Owner only.
func (l *Ledger) AuditLogs(ctx context.Context, pundID, actor uuid.UUID) ([]*models.AuditLogEntry, error) {
	if _, err := l.storage.GetPund(ctx, pundID); err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, l.storage, pundID, actor); err != nil {
		return nil, err
	}
	return l.storage.ListAudit(ctx, pundID)
}
