package ledger

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fixture wires a Ledger to a throwaway SQLite file and a movable clock.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.SQLStore
	ledger *Ledger
	now    time.Time
	owner  uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: s,
		now:   time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.ledger = NewLedger(s, logger, opts...)
	f.owner = f.user("owner@example.com", "Owner")
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) user(email, name string) uuid.UUID {
	f.t.Helper()
	u := &models.User{ID: uuid.New(), Email: email, Name: name, IsActive: true, CreatedAt: f.now}
	if err := f.store.CreateUser(f.ctx, u); err != nil {
		f.t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return u.ID
}

func (f *fixture) pund(pundType models.PundType) *models.Pund {
	f.t.Helper()
	p, err := f.ledger.CreatePund(f.ctx, f.owner, "Test Pund", pundType, "")
	if err != nil {
		f.t.Fatalf("Failed to create pund: %v", err)
	}
	return p
}

func (f *fixture) member(pundID uuid.UUID, email string) uuid.UUID {
	f.t.Helper()
	m, err := f.ledger.AddMember(f.ctx, pundID, f.owner, MemberParams{Email: email, Name: email})
	if err != nil {
		f.t.Fatalf("Failed to add member %s: %v", email, err)
	}
	return m.UserID
}

func (f *fixture) structure(pundID uuid.UUID, saving, interest, savingPenalty, loanPenalty int64, cycles int) *models.Structure {
	f.t.Helper()
	s, err := f.ledger.SetStructure(f.ctx, pundID, f.owner, StructureParams{
		SavingAmount:           decimal.NewFromInt(saving),
		LoanInterestPercentage: decimal.NewFromInt(interest),
		MissedSavingPenalty:    decimal.NewFromInt(savingPenalty),
		MissedLoanPenalty:      decimal.NewFromInt(loanPenalty),
		DefaultLoanCycles:      cycles,
	})
	if err != nil {
		f.t.Fatalf("Failed to set structure: %v", err)
	}
	return s
}

func (f *fixture) cycle(pundID uuid.UUID) *models.SavingCycle {
	f.t.Helper()
	c, err := f.ledger.GenerateCycle(f.ctx, pundID, f.owner)
	if err != nil {
		f.t.Fatalf("Failed to generate cycle: %v", err)
	}
	return c
}

func (f *fixture) approvedLoan(pundID, memberID uuid.UUID, principal int64, cycles *int) *models.Loan {
	f.t.Helper()
	loan, err := f.ledger.RequestLoan(f.ctx, pundID, memberID, decimal.NewFromInt(principal))
	if err != nil {
		f.t.Fatalf("Failed to request loan: %v", err)
	}
	loan, err = f.ledger.ApproveLoan(f.ctx, loan.ID, f.owner, cycles)
	if err != nil {
		f.t.Fatalf("Failed to approve loan: %v", err)
	}
	return loan
}

func (f *fixture) auditActions(pundID uuid.UUID) map[models.AuditAction]int {
	f.t.Helper()
	entries, err := f.ledger.AuditLogs(f.ctx, pundID, f.owner)
	if err != nil {
		f.t.Fatalf("Failed to list audit logs: %v", err)
	}
	out := make(map[models.AuditAction]int)
	for _, e := range entries {
		out[e.Action]++
	}
	return out
}

func expectKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("Expected %s error, got %q (%v)", kind, got, err)
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var e *apperr.Error
	if !errors.As(err, &e) {
		t.Fatalf("Expected *apperr.Error, got %T", err)
	}
	return e.Fields
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(n int) *int {
	return &n
}

const day = 24 * time.Hour
