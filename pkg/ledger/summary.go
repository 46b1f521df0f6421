package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/shopspring/decimal"
)

// FundSummary returns the cash position of a pund. Any member may read it.
// See models.FundSummary for how AvailableFund differs from
// CollectedLessActivePrincipal.
func (l *Ledger) FundSummary(ctx context.Context, pundID, actor uuid.UUID) (*models.FundSummary, error) {
	if _, err := l.storage.GetPund(ctx, pundID); err != nil {
		return nil, err
	}
	if _, err := membershipOf(ctx, l.storage, pundID, actor); err != nil {
		return nil, err
	}
	return fundSummary(ctx, l.storage, pundID)
}

func fundSummary(ctx context.Context, tx store.Tx, pundID uuid.UUID) (*models.FundSummary, error) {
	payments, err := tx.ListPundPayments(ctx, pundID)
	if err != nil {
		return nil, err
	}
	loans, err := tx.ListPundLoans(ctx, pundID)
	if err != nil {
		return nil, err
	}
	installments, err := tx.ListPundInstallments(ctx, pundID)
	if err != nil {
		return nil, err
	}

	s := &models.FundSummary{
		PundID:                  pundID,
		TotalCollected:          decimal.Zero,
		LoanRepaymentsCollected: decimal.Zero,
		TotalDisbursed:          decimal.Zero,
		ActiveLoanPrincipal:     decimal.Zero,
		ActiveLoanOutstanding:   decimal.Zero,
	}
	for _, p := range payments {
		if p.IsPaid {
			s.TotalCollected = s.TotalCollected.Add(p.Amount).Add(p.PenaltyAmount)
		}
	}
	for _, i := range installments {
		if i.IsPaid {
			s.LoanRepaymentsCollected = s.LoanRepaymentsCollected.Add(i.Due())
		}
	}
	for _, loan := range loans {
		switch loan.Status {
		case models.LoanStatusApproved:
			s.ActiveLoanPrincipal = s.ActiveLoanPrincipal.Add(loan.Principal)
			s.ActiveLoanOutstanding = s.ActiveLoanOutstanding.Add(loan.RemainingAmount)
			s.TotalDisbursed = s.TotalDisbursed.Add(loan.Principal)
		case models.LoanStatusClosed:
			s.TotalDisbursed = s.TotalDisbursed.Add(loan.Principal)
		}
	}
	s.AvailableFund = s.TotalCollected.Add(s.LoanRepaymentsCollected).Sub(s.TotalDisbursed)
	s.CollectedLessActivePrincipal = s.TotalCollected.Sub(s.ActiveLoanPrincipal)
	return s, nil
}

// SavingSummary totals the contributions of a pund. Owner only.
func (l *Ledger) SavingSummary(ctx context.Context, pundID, actor uuid.UUID) (*models.SavingSummary, error) {
	if _, err := l.storage.GetPund(ctx, pundID); err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, l.storage, pundID, actor); err != nil {
		return nil, err
	}

	cycles, err := l.storage.ListCycles(ctx, pundID)
	if err != nil {
		return nil, err
	}
	members, err := l.storage.ListMemberships(ctx, pundID)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.ListPundPayments(ctx, pundID)
	if err != nil {
		return nil, err
	}

	s := &models.SavingSummary{
		PundID:                  pundID,
		TotalCycles:             len(cycles),
		TotalExpected:           decimal.Zero,
		TotalPaid:               decimal.Zero,
		TotalUnpaid:             decimal.Zero,
		TotalPenaltiesCollected: decimal.Zero,
		TotalPenaltiesPending:   decimal.Zero,
	}
	for _, m := range members {
		if m.Role == models.RoleMember && m.IsActive {
			s.TotalMembers++
		}
	}
	for _, p := range payments {
		s.TotalExpected = s.TotalExpected.Add(p.Amount)
		if p.IsPaid {
			s.TotalPaid = s.TotalPaid.Add(p.Amount).Add(p.PenaltyAmount)
			s.TotalPenaltiesCollected = s.TotalPenaltiesCollected.Add(p.PenaltyAmount)
		} else {
			s.TotalUnpaid = s.TotalUnpaid.Add(p.Amount)
			s.TotalPenaltiesPending = s.TotalPenaltiesPending.Add(p.PenaltyAmount)
		}
	}
	return s, nil
}

// MyFinancialSummary gathers the caller's savings across punds and every
// loan still open.
func (l *Ledger) MyFinancialSummary(ctx context.Context, actor uuid.UUID) (*models.FinancialSummary, error) {
	payments, err := l.storage.ListMemberPayments(ctx, actor)
	if err != nil {
		return nil, err
	}
	loans, err := l.storage.ListMemberLoans(ctx, actor)
	if err != nil {
		return nil, err
	}

	out := &models.FinancialSummary{
		SavingSummary: models.MemberSavingSummary{
			TotalSavingsPaid:   decimal.Zero,
			TotalSavingPenalty: decimal.Zero,
			TotalUnpaidSavings: decimal.Zero,
		},
		LoanSummaries: []models.MemberLoanSummary{},
	}
	for _, p := range payments {
		out.SavingSummary.TotalSavingPenalty = out.SavingSummary.TotalSavingPenalty.Add(p.PenaltyAmount)
		if p.IsPaid {
			out.SavingSummary.TotalSavingsPaid = out.SavingSummary.TotalSavingsPaid.Add(p.Amount)
		} else {
			out.SavingSummary.TotalUnpaidSavings = out.SavingSummary.TotalUnpaidSavings.Add(p.Amount)
		}
	}

	for _, loan := range loans {
		if !loan.IsOpen() {
			continue
		}
		installments, err := l.storage.ListInstallments(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		ls := models.MemberLoanSummary{
			LoanID:           loan.ID,
			PundID:           loan.PundID,
			PundName:         loan.PundName,
			Principal:        loan.Principal,
			TotalPayable:     loan.TotalPayable,
			RemainingAmount:  loan.RemainingAmount,
			Status:           loan.Status,
			TotalEMIPaid:     decimal.Zero,
			TotalLoanPenalty: decimal.Zero,
			Progress:         loanProgress(loan, installments),
		}
		for _, i := range installments {
			ls.TotalLoanPenalty = ls.TotalLoanPenalty.Add(i.PenaltyAmount)
			if i.IsPaid {
				ls.TotalEMIPaid = ls.TotalEMIPaid.Add(i.EMIAmount)
			}
		}
		out.LoanSummaries = append(out.LoanSummaries, ls)
	}
	return out, nil
}

// Report collects the data of an owner export.
func (l *Ledger) Report(ctx context.Context, pundID, actor uuid.UUID) (*models.PundReport, error) {
	pund, err := l.storage.GetPund(ctx, pundID)
	if err != nil {
		return nil, err
	}
	savings, err := l.SavingSummary(ctx, pundID, actor)
	if err != nil {
		return nil, err
	}
	fund, err := fundSummary(ctx, l.storage, pundID)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.ListPundPayments(ctx, pundID)
	if err != nil {
		return nil, err
	}
	loans, err := l.PundLoans(ctx, pundID, actor)
	if err != nil {
		return nil, err
	}
	return &models.PundReport{
		Pund:     pund,
		Fund:     fund,
		Savings:  savings,
		Payments: payments,
		Loans:    loans,
	}, nil
}
