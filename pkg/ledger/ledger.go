// Package ledger implements the pund rules: structures, saving cycles, loans,
// penalties and the fund read models. Every mutation runs in one store
// transaction holding the pund lock and appends its audit entry there.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/sirupsen/logrus"
)

// Ledger handles the business logic for punds, savings and loans.
type Ledger struct {
	storage          store.Storage
	logger           *logrus.Logger
	now              func() time.Time
	enforceFundLimit bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFundLimit makes ApproveLoan refuse principals above the available fund.
func WithFundLimit(enabled bool) Option {
	return func(l *Ledger) { l.enforceFundLimit = enabled }
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *logrus.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = logrus.New()
	}
	l := &Ledger{
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// mutate runs fn in a transaction holding the lock of the pund.
func (l *Ledger) mutate(ctx context.Context, pundID uuid.UUID, fn func(tx store.Tx, pund *models.Pund) error) error {
	return l.storage.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockPund(ctx, pundID); err != nil {
			return err
		}
		pund, err := tx.GetPund(ctx, pundID)
		if err != nil {
			return err
		}
		return fn(tx, pund)
	})
}

func requireActive(pund *models.Pund) error {
	if !pund.IsActive {
		return apperr.InvalidState("pund %q is closed", pund.Name)
	}
	return nil
}

// membershipOf returns the caller's membership, Forbidden when there is none.
func membershipOf(ctx context.Context, tx store.Tx, pundID, actor uuid.UUID) (*models.Membership, error) {
	m, err := tx.GetMembership(ctx, pundID, actor)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Forbidden("not a member of this pund")
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func requireOwner(ctx context.Context, tx store.Tx, pundID, actor uuid.UUID) error {
	m, err := membershipOf(ctx, tx, pundID, actor)
	if err != nil {
		return err
	}
	if m.Role != models.RoleOwner {
		return apperr.Forbidden("only the pund owner can do this")
	}
	return nil
}
