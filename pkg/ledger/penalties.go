package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/sirupsen/logrus"
)

// SweepResult counts the penalties assessed by one sweep.
type SweepResult struct {
	Punds        int `json:"punds"`
	Payments     int `json:"payments"`
	Installments int `json:"installments"`
}

type sweepScope struct {
	payments     bool
	installments bool
}

// AssessOverduePenalties charges the missed saving penalty on every unpaid
// payment past its due date that has not been penalized yet.
func (l *Ledger) AssessOverduePenalties(ctx context.Context) (int, error) {
	res, err := l.sweep(ctx, sweepScope{payments: true})
	return res.Payments, err
}

// AssessOverdueLoanPenalties charges each loan's frozen missed loan penalty
// on its overdue unpaid installments.
func (l *Ledger) AssessOverdueLoanPenalties(ctx context.Context) (int, error) {
	res, err := l.sweep(ctx, sweepScope{installments: true})
	return res.Installments, err
}

// SweepPenalties runs both assessments. It is what the scheduler calls.
func (l *Ledger) SweepPenalties(ctx context.Context) (SweepResult, error) {
	return l.sweep(ctx, sweepScope{payments: true, installments: true})
}

// sweep visits active punds one at a time, each under its own lock. A failing
// pund is logged and skipped so the others still get assessed.
func (l *Ledger) sweep(ctx context.Context, scope sweepScope) (SweepResult, error) {
	var res SweepResult
	punds, err := l.storage.ListPunds(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list punds for penalty sweep: %w", err)
	}

	var errs []error
	for _, p := range punds {
		if !p.IsActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		payments, installments, err := l.assessPund(ctx, p.ID, scope)
		if err != nil {
			l.logger.WithError(err).WithField("pund_id", p.ID).Error("Penalty sweep failed for pund")
			errs = append(errs, fmt.Errorf("pund %s: %w", p.ID, err))
			continue
		}
		if payments+installments > 0 {
			res.Punds++
			res.Payments += payments
			res.Installments += installments
		}
	}

	l.logger.WithFields(logrus.Fields{
		"punds":        res.Punds,
		"payments":     res.Payments,
		"installments": res.Installments,
	}).Info("Penalty sweep finished")
	return res, errors.Join(errs...)
}

func (l *Ledger) assessPund(ctx context.Context, pundID uuid.UUID, scope sweepScope) (int, int, error) {
	now := l.clock()
	today := models.Date(now)
	var payments, installments int

	err := l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		payments, installments = 0, 0
		if !pund.IsActive {
			return nil
		}

		if scope.payments {
			overdue, err := tx.ListOverduePayments(ctx, pundID, today)
			if err != nil {
				return err
			}
			if len(overdue) > 0 {
				structure, err := activeStructure(ctx, tx, pundID, now)
				if apperr.Is(err, apperr.KindNoStructure) || apperr.Is(err, apperr.KindStructureNotEffective) {
					overdue = nil
				} else if err != nil {
					return err
				}
				for _, p := range overdue {
					if !p.PenaltyAmount.IsZero() || !structure.MissedSavingPenalty.IsPositive() {
						continue
					}
					p.PenaltyAmount = structure.MissedSavingPenalty
					if err := tx.UpdatePayment(ctx, p); err != nil {
						return err
					}
					payments++
				}
			}
		}

		if scope.installments {
			overdue, err := tx.ListOverdueInstallments(ctx, pundID, today)
			if err != nil {
				return err
			}
			loans := make(map[uuid.UUID]*models.Loan)
			for _, inst := range overdue {
				if !inst.PenaltyAmount.IsZero() {
					continue
				}
				loan, ok := loans[inst.LoanID]
				if !ok {
					if loan, err = tx.GetLoan(ctx, inst.LoanID); err != nil {
						return err
					}
					loans[inst.LoanID] = loan
				}
				if !loan.MissedLoanPenalty.IsPositive() {
					continue
				}
				inst.PenaltyAmount = loan.MissedLoanPenalty
				if err := tx.UpdateInstallment(ctx, inst); err != nil {
					return err
				}
				loan.RemainingAmount = loan.RemainingAmount.Add(inst.PenaltyAmount)
				loan.UpdatedAt = now
				if err := tx.UpdateLoan(ctx, loan); err != nil {
					return err
				}
				installments++
			}
		}

		if payments+installments == 0 {
			return nil
		}
		return l.audit(ctx, tx, pundID, uuid.Nil, models.AuditPenaltyAssessed,
			"Penalties assessed on %d overdue payments and %d overdue installments", payments, installments)
	})
	if err != nil {
		return 0, 0, err
	}
	return payments, installments, nil
}
