package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/money"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RequestLoan creates a pending loan for the calling member. A member can
// hold only one open loan per pund.
func (l *Ledger) RequestLoan(ctx context.Context, pundID, actor uuid.UUID, principal decimal.Decimal) (*models.Loan, error) {
	if !principal.IsPositive() {
		return nil, apperr.Invalid("principal_amount", "must be greater than 0")
	}
	if !money.Round(principal).Equal(principal) {
		return nil, apperr.Invalid("principal_amount", "must have at most 2 decimal places")
	}
	now := l.clock()

	var loan *models.Loan
	err := l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		m, err := membershipOf(ctx, tx, pundID, actor)
		if err != nil {
			return err
		}
		if m.Role != models.RoleMember {
			return apperr.Forbidden("only members can request loans")
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		if !m.IsActive {
			return apperr.InvalidState("membership is not active")
		}

		existing, err := tx.ListMemberLoans(ctx, actor)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.PundID == pundID && e.IsOpen() {
				return apperr.InvalidState("an open loan already exists for this member")
			}
		}

		loan = &models.Loan{
			ID:                 uuid.New(),
			PundID:             pundID,
			MemberID:           actor,
			Principal:          principal,
			InterestPercentage: decimal.Zero,
			MissedLoanPenalty:  decimal.Zero,
			Status:             models.LoanStatusPending,
			TotalPayable:       decimal.Zero,
			RemainingAmount:    decimal.Zero,
			CreatedAt:          now,
			UpdatedAt:          now,
			MemberEmail:        m.Email,
			MemberName:         m.Name,
			PundName:           pund.Name,
		}
		if err := tx.CreateLoan(ctx, loan); err != nil {
			return err
		}
		return l.audit(ctx, tx, pundID, actor, models.AuditLoanRequested,
			"Loan of %s requested", principal.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ApproveLoan approves a pending loan and builds its repayment schedule.
// A nil cycles uses the structure's default term.
func (l *Ledger) ApproveLoan(ctx context.Context, loanID, actor uuid.UUID, cycles *int) (*models.Loan, error) {
	if cycles != nil && *cycles < 1 {
		return nil, apperr.Invalid("cycles", "must be at least 1")
	}
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	now := l.clock()

	err = l.mutate(ctx, loan.PundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pund.ID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return apperr.InvalidState("loan is %s, only pending loans can be approved", loan.Status)
		}
		structure, err := activeStructure(ctx, tx, pund.ID, now)
		if err != nil {
			return err
		}

		if l.enforceFundLimit {
			fund, err := fundSummary(ctx, tx, pund.ID)
			if err != nil {
				return err
			}
			if loan.Principal.GreaterThan(fund.AvailableFund) {
				return apperr.InsufficientFunds("principal %s exceeds available fund %s",
					loan.Principal.StringFixed(2), fund.AvailableFund.StringFixed(2))
			}
		}

		term := structure.DefaultLoanCycles
		if cycles != nil {
			term = *cycles
		}
		total := money.ApplyPercentage(loan.Principal, structure.LoanInterestPercentage)
		emis, err := money.Split(total, term)
		if err != nil {
			return err
		}

		approvedBy := actor
		loan.Status = models.LoanStatusApproved
		loan.InterestPercentage = structure.LoanInterestPercentage
		loan.MissedLoanPenalty = structure.MissedLoanPenalty
		loan.TotalPayable = total
		loan.RemainingAmount = total
		loan.Cycles = term
		loan.ApprovedBy = &approvedBy
		loan.ApprovedAt = &now
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		loan.Installments = make([]*models.Installment, 0, term)
		for i, emi := range emis {
			inst := &models.Installment{
				ID:            uuid.New(),
				LoanID:        loan.ID,
				CycleNumber:   i + 1,
				DueDate:       dueDate(now, pund.Type, i+1),
				EMIAmount:     emi,
				PenaltyAmount: decimal.Zero,
			}
			if err := tx.CreateInstallment(ctx, inst); err != nil {
				return err
			}
			loan.Installments = append(loan.Installments, inst)
		}
		loan.Progress = loanProgress(loan, loan.Installments)

		return l.audit(ctx, tx, pund.ID, actor, models.AuditLoanApproved,
			"Loan of %s for %s approved: %d installments, total payable %s",
			loan.Principal.StringFixed(2), displayMember(loan.MemberName, loan.MemberEmail), term, total.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"loan_id":       loan.ID,
		"total_payable": loan.TotalPayable.StringFixed(2),
		"cycles":        loan.Cycles,
	}).Info("Loan approved")
	return loan, nil
}

// RejectLoan rejects a pending loan.
func (l *Ledger) RejectLoan(ctx context.Context, loanID, actor uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	now := l.clock()

	err = l.mutate(ctx, loan.PundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pund.ID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanStatusPending {
			return apperr.InvalidState("loan is %s, only pending loans can be rejected", loan.Status)
		}
		loan.Status = models.LoanStatusRejected
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		return l.audit(ctx, tx, pund.ID, actor, models.AuditLoanRejected,
			"Loan of %s for %s rejected", loan.Principal.StringFixed(2), displayMember(loan.MemberName, loan.MemberEmail))
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// MarkInstallmentPaid records an installment repayment and closes the loan
// once nothing is left unpaid.
func (l *Ledger) MarkInstallmentPaid(ctx context.Context, installmentID, actor uuid.UUID) (*models.Loan, error) {
	inst, err := l.storage.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	loan, err := l.storage.GetLoan(ctx, inst.LoanID)
	if err != nil {
		return nil, err
	}
	now := l.clock()

	err = l.mutate(ctx, loan.PundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pund.ID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		inst, err = tx.GetInstallment(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst.IsPaid {
			return apperr.AlreadyPaid("installment %d is already paid", inst.CycleNumber)
		}
		loan, err = tx.GetLoan(ctx, inst.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanStatusApproved {
			return apperr.InvalidState("loan is %s, installments can only be paid on approved loans", loan.Status)
		}

		if isOverdue(inst.DueDate, now) && inst.PenaltyAmount.IsZero() && loan.MissedLoanPenalty.IsPositive() {
			inst.PenaltyAmount = loan.MissedLoanPenalty
			loan.RemainingAmount = loan.RemainingAmount.Add(inst.PenaltyAmount)
		}
		inst.IsPaid = true
		inst.PaidAt = &now
		if err := tx.UpdateInstallment(ctx, inst); err != nil {
			return err
		}

		loan.RemainingAmount = loan.RemainingAmount.Sub(inst.Due())
		if loan.RemainingAmount.IsNegative() {
			loan.RemainingAmount = decimal.Zero
		}
		installments, err := tx.ListInstallments(ctx, loan.ID)
		if err != nil {
			return err
		}
		closed := true
		for _, i := range installments {
			if !i.IsPaid {
				closed = false
				break
			}
		}
		if closed {
			loan.Status = models.LoanStatusClosed
			loan.RemainingAmount = decimal.Zero
		}
		loan.UpdatedAt = now
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		loan.Installments = installments
		loan.Progress = loanProgress(loan, installments)

		if err := l.audit(ctx, tx, pund.ID, actor, models.AuditInstallmentPaid,
			"Installment %d of %s paid (%s)", inst.CycleNumber,
			displayMember(loan.MemberName, loan.MemberEmail), inst.Due().StringFixed(2)); err != nil {
			return err
		}
		if closed {
			return l.audit(ctx, tx, pund.ID, actor, models.AuditLoanClosed,
				"Loan of %s for %s closed", loan.Principal.StringFixed(2), displayMember(loan.MemberName, loan.MemberEmail))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loan.Status == models.LoanStatusClosed {
		l.logger.WithField("loan_id", loan.ID).Info("Loan closed")
	}
	return loan, nil
}

// LoanDetail returns a loan with its schedule. The borrower and the pund
// owner may read it.
func (l *Ledger) LoanDetail(ctx context.Context, loanID, actor uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.MemberID != actor {
		if err := requireOwner(ctx, l.storage, loan.PundID, actor); err != nil {
			return nil, err
		}
	}
	if err := l.withSchedule(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// PundLoans lists every loan of a pund with progress. Owner only.
func (l *Ledger) PundLoans(ctx context.Context, pundID, actor uuid.UUID) ([]*models.Loan, error) {
	if _, err := l.storage.GetPund(ctx, pundID); err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, l.storage, pundID, actor); err != nil {
		return nil, err
	}
	loans, err := l.storage.ListPundLoans(ctx, pundID)
	if err != nil {
		return nil, err
	}
	for _, loan := range loans {
		if err := l.withSchedule(ctx, loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// MyLoans lists the caller's loans across punds.
func (l *Ledger) MyLoans(ctx context.Context, actor uuid.UUID) ([]*models.Loan, error) {
	loans, err := l.storage.ListMemberLoans(ctx, actor)
	if err != nil {
		return nil, err
	}
	for _, loan := range loans {
		if err := l.withSchedule(ctx, loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

func (l *Ledger) withSchedule(ctx context.Context, loan *models.Loan) error {
	installments, err := l.storage.ListInstallments(ctx, loan.ID)
	if err != nil {
		return err
	}
	loan.Installments = installments
	loan.Progress = loanProgress(loan, installments)
	return nil
}

// loanProgress is the share of total_payable settled by paid installments,
// penalties included, as a percentage.
func loanProgress(loan *models.Loan, installments []*models.Installment) decimal.Decimal {
	paid := decimal.Zero
	for _, i := range installments {
		if i.IsPaid {
			paid = paid.Add(i.Due())
		}
	}
	return money.Percent(paid, loan.TotalPayable)
}
