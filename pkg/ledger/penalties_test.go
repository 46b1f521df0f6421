package ledger

import (
	"testing"
	"time"

	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/shopspring/decimal"
)

func TestSweepPenalties_AssessesOnceAndAudits(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeWeekly)
	f.member(p.ID, "a@example.com")
	f.member(p.ID, "b@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)
	c := f.cycle(p.ID)

	res, err := f.ledger.SweepPenalties(f.ctx)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if res.Payments != 0 {
		t.Errorf("Expected nothing overdue before the due date, got %d", res.Payments)
	}

	// Due date day itself is still on time.
	f.now = c.DueDate.Add(23 * time.Hour)
	if n, err := f.ledger.AssessOverduePenalties(f.ctx); err != nil || n != 0 {
		t.Fatalf("Expected no penalties on the due date, got %d (%v)", n, err)
	}

	f.advance(day)
	res, err = f.ledger.SweepPenalties(f.ctx)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if res.Payments != 2 || res.Punds != 1 {
		t.Errorf("Expected 2 payments penalized in 1 pund, got %+v", res)
	}

	res, err = f.ledger.SweepPenalties(f.ctx)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if res.Payments != 0 {
		t.Errorf("Expected the second sweep to be a no-op, got %d", res.Payments)
	}

	for _, pay := range c.Payments {
		got, err := f.store.GetPayment(f.ctx, pay.ID)
		if err != nil {
			t.Fatalf("Failed to get payment: %v", err)
		}
		if !got.PenaltyAmount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Expected penalty 50 assessed once, got %s", got.PenaltyAmount)
		}
	}

	entries, err := f.ledger.AuditLogs(f.ctx, p.ID, f.owner)
	if err != nil {
		t.Fatalf("Failed to list audit logs: %v", err)
	}
	var system int
	for _, e := range entries {
		if e.Action == models.AuditPenaltyAssessed {
			system++
			if e.PerformedByName != models.SystemActor || e.PerformedByID != nil {
				t.Errorf("Expected penalty entry by System, got %q", e.PerformedByName)
			}
		}
	}
	if system != 1 {
		t.Errorf("Expected 1 penalty audit entry, got %d", system)
	}

	// Paying after the sweep keeps the assessed penalty without doubling it.
	paid, err := f.ledger.MarkPaymentPaid(f.ctx, c.Payments[0].ID, f.owner)
	if err != nil {
		t.Fatalf("Failed to mark payment paid: %v", err)
	}
	if !paid.PenaltyAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected penalty to stay 50, got %s", paid.PenaltyAmount)
	}
}

func TestSweepPenalties_UsesStructureInForceAtAssessment(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeDaily)
	f.member(p.ID, "a@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)
	c := f.cycle(p.ID)

	f.advance(2 * day)
	f.structure(p.ID, 500, 10, 75, 100, 6)
	if _, err := f.ledger.AssessOverduePenalties(f.ctx); err != nil {
		t.Fatalf("Failed to assess penalties: %v", err)
	}
	got, _ := f.store.GetPayment(f.ctx, c.Payments[0].ID)
	if !got.PenaltyAmount.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected the penalty in force today (75), got %s", got.PenaltyAmount)
	}
}

func TestSweepPenalties_LoanPenaltyFrozenAtApproval(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeWeekly)
	member := f.member(p.ID, "borrower@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)
	loan := f.approvedLoan(p.ID, member, 60000, nil)

	// Same effective date: replaces the rules after approval.
	f.structure(p.ID, 500, 10, 50, 400, 6)

	f.advance(15 * day)
	n, err := f.ledger.AssessOverdueLoanPenalties(f.ctx)
	if err != nil {
		t.Fatalf("Failed to assess loan penalties: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 overdue installments, got %d", n)
	}

	got, err := f.ledger.LoanDetail(f.ctx, loan.ID, f.owner)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	for _, inst := range got.Installments[:2] {
		if !inst.PenaltyAmount.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Installment %d: expected frozen penalty 100, got %s", inst.CycleNumber, inst.PenaltyAmount)
		}
	}
	if !got.Installments[2].PenaltyAmount.IsZero() {
		t.Errorf("Expected installment 3 untouched, got %s", got.Installments[2].PenaltyAmount)
	}
	if !got.RemainingAmount.Equal(decimal.NewFromInt(66200)) {
		t.Errorf("Expected remaining 66200 with penalties, got %s", got.RemainingAmount)
	}

	if n, _ := f.ledger.AssessOverdueLoanPenalties(f.ctx); n != 0 {
		t.Errorf("Expected the second assessment to be a no-op, got %d", n)
	}
}

func TestSweepPenalties_SkipsClosedPunds(t *testing.T) {
	f := newFixture(t)
	p := f.pund(models.PundTypeDaily)
	f.member(p.ID, "a@example.com")
	f.structure(p.ID, 500, 10, 50, 100, 6)
	f.cycle(p.ID)
	if err := f.ledger.ClosePund(f.ctx, p.ID, f.owner); err != nil {
		t.Fatalf("Failed to close pund: %v", err)
	}

	f.advance(3 * day)
	res, err := f.ledger.SweepPenalties(f.ctx)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if res.Payments != 0 {
		t.Errorf("Expected closed pund to be skipped, got %d penalties", res.Payments)
	}
}
