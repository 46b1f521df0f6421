package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPund(t *testing.T, s *SQLStore) (*models.User, *models.Pund) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	owner := &models.User{ID: uuid.New(), Email: "owner@example.com", Name: "Owner", IsActive: true, CreatedAt: now}
	if err := s.CreateUser(ctx, owner); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	pund := &models.Pund{
		ID:        uuid.New(),
		Name:      "Friday Pund",
		Type:      models.PundTypeWeekly,
		IsActive:  true,
		OwnerID:   owner.ID,
		StartDate: models.Date(now),
		CreatedAt: now,
	}
	if err := s.CreatePund(ctx, pund); err != nil {
		t.Fatalf("Failed to create pund: %v", err)
	}
	return owner, pund
}

func TestRebind(t *testing.T) {
	q := `UPDATE loans SET status = ? WHERE id = ? AND pund_id = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("Expected sqlite query unchanged, got %q", got)
	}
	want := `UPDATE loans SET status = $1 WHERE id = $2 AND pund_id = $3`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSQLiteStore_UserAndPund(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, pund := seedPund(t, s)

	fetched, err := s.GetUserByEmail(ctx, "OWNER@example.com")
	if err != nil {
		t.Fatalf("Failed to get user by email: %v", err)
	}
	if fetched.ID != owner.ID {
		t.Errorf("Expected user %s, got %s", owner.ID, fetched.ID)
	}

	got, err := s.GetPund(ctx, pund.ID)
	if err != nil {
		t.Fatalf("Failed to get pund: %v", err)
	}
	if got.Type != models.PundTypeWeekly || got.OwnerID != owner.ID {
		t.Errorf("Unexpected pund %+v", got)
	}

	_, err = s.GetPund(ctx, uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found for missing pund, got %v", err)
	}
}

func TestSQLiteStore_Memberships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, pund := seedPund(t, s)

	m := &models.Membership{ID: uuid.New(), UserID: owner.ID, PundID: pund.ID, Role: models.RoleOwner, IsActive: true, JoinedAt: time.Now()}
	if err := s.CreateMembership(ctx, m); err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	dup := &models.Membership{ID: uuid.New(), UserID: owner.ID, PundID: pund.ID, Role: models.RoleMember, IsActive: true, JoinedAt: time.Now()}
	if err := s.CreateMembership(ctx, dup); err == nil {
		t.Error("Expected duplicate membership to be rejected")
	}

	if err := s.SetMembershipsActive(ctx, pund.ID, false); err != nil {
		t.Fatalf("Failed to deactivate memberships: %v", err)
	}
	got, err := s.GetMembership(ctx, pund.ID, owner.ID)
	if err != nil {
		t.Fatalf("Failed to get membership: %v", err)
	}
	if got.IsActive {
		t.Error("Expected membership to be inactive")
	}
	if got.Email != owner.Email {
		t.Errorf("Expected joined email %s, got %s", owner.Email, got.Email)
	}
}

func TestSQLiteStore_CyclesAndPayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, pund := seedPund(t, s)
	today := models.Date(time.Now())

	st := &models.Structure{
		ID:                     uuid.New(),
		PundID:                 pund.ID,
		SavingAmount:           decimal.NewFromInt(500),
		LoanInterestPercentage: decimal.NewFromInt(10),
		MissedSavingPenalty:    decimal.NewFromInt(50),
		MissedLoanPenalty:      decimal.NewFromInt(100),
		DefaultLoanCycles:      6,
		EffectiveFrom:          today,
		CreatedAt:              time.Now(),
	}
	if err := s.CreateStructure(ctx, st); err != nil {
		t.Fatalf("Failed to create structure: %v", err)
	}

	for seq := 1; seq <= 2; seq++ {
		c := &models.SavingCycle{ID: uuid.New(), PundID: pund.ID, Sequence: seq, DueDate: today.AddDate(0, 0, -7*(3-seq)), StructureID: st.ID, CreatedAt: time.Now()}
		if err := s.CreateCycle(ctx, c); err != nil {
			t.Fatalf("Failed to create cycle %d: %v", seq, err)
		}
		p := &models.Payment{ID: uuid.New(), CycleID: c.ID, PundID: pund.ID, MemberID: owner.ID, CycleNumber: seq, DueDate: c.DueDate, Amount: st.SavingAmount, CreatedAt: time.Now()}
		if err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("Failed to create payment: %v", err)
		}
	}

	dup := &models.SavingCycle{ID: uuid.New(), PundID: pund.ID, Sequence: 2, DueDate: today, StructureID: st.ID, CreatedAt: time.Now()}
	if err := s.CreateCycle(ctx, dup); err == nil {
		t.Error("Expected duplicate cycle sequence to be rejected")
	}

	max, err := s.MaxCycleSequence(ctx, pund.ID)
	if err != nil {
		t.Fatalf("Failed to get max sequence: %v", err)
	}
	if max != 2 {
		t.Errorf("Expected max sequence 2, got %d", max)
	}

	overdue, err := s.ListOverduePayments(ctx, pund.ID, today)
	if err != nil {
		t.Fatalf("Failed to list overdue payments: %v", err)
	}
	if len(overdue) != 2 {
		t.Fatalf("Expected 2 overdue payments, got %d", len(overdue))
	}
	if !overdue[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected amount 500, got %s", overdue[0].Amount)
	}

	paidAt := time.Now()
	overdue[0].IsPaid = true
	overdue[0].PaidAt = &paidAt
	overdue[0].PenaltyAmount = decimal.NewFromInt(50)
	if err := s.UpdatePayment(ctx, overdue[0]); err != nil {
		t.Fatalf("Failed to update payment: %v", err)
	}
	got, err := s.GetPayment(ctx, overdue[0].ID)
	if err != nil {
		t.Fatalf("Failed to get payment: %v", err)
	}
	if !got.IsPaid || got.PaidAt == nil || !got.PenaltyAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Unexpected payment after update: %+v", got)
	}

	overdue, _ = s.ListOverduePayments(ctx, pund.ID, today)
	if len(overdue) != 1 {
		t.Errorf("Expected 1 overdue payment after paying one, got %d", len(overdue))
	}
}

func TestSQLiteStore_LoansAndInstallments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner, pund := seedPund(t, s)
	now := time.Now().UTC()

	loan := &models.Loan{
		ID:                 uuid.New(),
		PundID:             pund.ID,
		MemberID:           owner.ID,
		Principal:          decimal.NewFromInt(60000),
		InterestPercentage: decimal.Zero,
		MissedLoanPenalty:  decimal.Zero,
		Status:             models.LoanStatusPending,
		TotalPayable:       decimal.Zero,
		RemainingAmount:    decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	approvedAt := now
	loan.Status = models.LoanStatusApproved
	loan.ApprovedBy = &owner.ID
	loan.ApprovedAt = &approvedAt
	loan.TotalPayable = decimal.NewFromInt(66000)
	loan.RemainingAmount = decimal.NewFromInt(66000)
	loan.Cycles = 6
	if err := s.UpdateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to update loan: %v", err)
	}
	inst := &models.Installment{ID: uuid.New(), LoanID: loan.ID, CycleNumber: 1, DueDate: models.Date(now).AddDate(0, 0, -1), EMIAmount: decimal.NewFromInt(11000), PenaltyAmount: decimal.Zero}
	if err := s.CreateInstallment(ctx, inst); err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}

	fetched, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if fetched.Status != models.LoanStatusApproved || fetched.ApprovedBy == nil || *fetched.ApprovedBy != owner.ID {
		t.Errorf("Unexpected loan after approval: %+v", fetched)
	}
	if fetched.PundName != pund.Name {
		t.Errorf("Expected pund name %s, got %s", pund.Name, fetched.PundName)
	}

	overdue, err := s.ListOverdueInstallments(ctx, pund.ID, now)
	if err != nil {
		t.Fatalf("Failed to list overdue installments: %v", err)
	}
	if len(overdue) != 1 || !overdue[0].EMIAmount.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("Expected one overdue installment of 11000, got %+v", overdue)
	}

	missing := &models.Installment{ID: uuid.New()}
	if err := s.UpdateInstallment(ctx, missing); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not_found updating missing installment, got %v", err)
	}
}

func TestSQLiteStore_WithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, pund := seedPund(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.LockPund(ctx, pund.ID); err != nil {
			return err
		}
		entry := &models.AuditLogEntry{ID: uuid.New(), PundID: pund.ID, Action: models.AuditPundClosed, Description: "closed", PerformedByName: models.SystemActor, Timestamp: time.Now()}
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	entries, err := s.ListAudit(ctx, pund.ID)
	if err != nil {
		t.Fatalf("Failed to list audit: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected rolled back audit entry, got %d entries", len(entries))
	}

	err = s.WithTx(ctx, func(tx Tx) error {
		return tx.AppendAudit(ctx, &models.AuditLogEntry{ID: uuid.New(), PundID: pund.ID, Action: models.AuditPundReopened, Description: "reopened", PerformedByName: models.SystemActor, Timestamp: time.Now()})
	})
	if err != nil {
		t.Fatalf("Failed to commit audit entry: %v", err)
	}
	entries, _ = s.ListAudit(ctx, pund.ID)
	if len(entries) != 1 || entries[0].PerformedByID != nil {
		t.Errorf("Expected one System audit entry, got %+v", entries)
	}
}

func TestSQLiteStore_AuditKeepsWriteOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, pund := seedPund(t, s)
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	actions := []models.AuditAction{
		models.AuditLoanApproved,
		models.AuditInstallmentPaid,
		models.AuditLoanClosed,
		models.AuditPundClosed,
		models.AuditPundReopened,
	}
	err := s.WithTx(ctx, func(tx Tx) error {
		for _, a := range actions {
			e := &models.AuditLogEntry{ID: uuid.New(), PundID: pund.ID, Action: a, Description: string(a), PerformedByName: models.SystemActor, Timestamp: at}
			if err := tx.AppendAudit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to append audit entries: %v", err)
	}

	entries, err := s.ListAudit(ctx, pund.ID)
	if err != nil {
		t.Fatalf("Failed to list audit entries: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("Expected %d entries, got %d", len(actions), len(entries))
	}
	for i, e := range entries {
		if want := actions[len(actions)-1-i]; e.Action != want {
			t.Errorf("Entry %d: expected %s, got %s", i, want, e.Action)
		}
	}
}
