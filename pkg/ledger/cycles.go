package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/mcclellann/pundLedger/pkg/money"
	"github.com/mcclellann/pundLedger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GenerateCycle opens the next saving cycle of a pund and creates one unpaid
// payment per active member. The owner does not contribute.
func (l *Ledger) GenerateCycle(ctx context.Context, pundID, actor uuid.UUID) (*models.SavingCycle, error) {
	now := l.clock()

	var cycle *models.SavingCycle
	err := l.mutate(ctx, pundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pundID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		structure, err := activeStructure(ctx, tx, pundID, now)
		if err != nil {
			return err
		}

		last, err := tx.MaxCycleSequence(ctx, pundID)
		if err != nil {
			return err
		}
		seq := last + 1
		cycle = &models.SavingCycle{
			ID:          uuid.New(),
			PundID:      pundID,
			Sequence:    seq,
			DueDate:     dueDate(pund.StartDate, pund.Type, seq),
			StructureID: structure.ID,
			CreatedAt:   now,
		}
		if err := tx.CreateCycle(ctx, cycle); err != nil {
			return err
		}

		members, err := tx.ListMemberships(ctx, pundID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.Role != models.RoleMember || !m.IsActive {
				continue
			}
			p := &models.Payment{
				ID:            uuid.New(),
				CycleID:       cycle.ID,
				PundID:        pundID,
				MemberID:      m.UserID,
				CycleNumber:   seq,
				DueDate:       cycle.DueDate,
				Amount:        structure.SavingAmount,
				PenaltyAmount: decimal.Zero,
				CreatedAt:     now,
				MemberEmail:   m.Email,
				MemberName:    m.Name,
			}
			if err := tx.CreatePayment(ctx, p); err != nil {
				return err
			}
			cycle.Payments = append(cycle.Payments, p)
		}
		summarizeCycle(cycle)

		return l.audit(ctx, tx, pundID, actor, models.AuditCycleGenerated,
			"Cycle %d generated, due %s, %d payments of %s",
			seq, cycle.DueDate.Format(time.DateOnly), len(cycle.Payments), structure.SavingAmount.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"pund_id":  pundID,
		"cycle":    cycle.Sequence,
		"payments": len(cycle.Payments),
	}).Info("Cycle generated")
	return cycle, nil
}

// MarkPaymentPaid records a member's contribution. A payment that is already
// overdue gets its penalty assessed first.
func (l *Ledger) MarkPaymentPaid(ctx context.Context, paymentID, actor uuid.UUID) (*models.Payment, error) {
	payment, err := l.storage.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	now := l.clock()

	err = l.mutate(ctx, payment.PundID, func(tx store.Tx, pund *models.Pund) error {
		if err := requireOwner(ctx, tx, pund.ID, actor); err != nil {
			return err
		}
		if err := requireActive(pund); err != nil {
			return err
		}
		// Re-read under the lock.
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.IsPaid {
			return apperr.AlreadyPaid("payment is already marked paid")
		}

		if isOverdue(p.DueDate, now) && p.PenaltyAmount.IsZero() {
			structure, err := activeStructure(ctx, tx, pund.ID, now)
			if err != nil {
				return err
			}
			p.PenaltyAmount = structure.MissedSavingPenalty
		}
		p.IsPaid = true
		p.PaidAt = &now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment = p
		return l.audit(ctx, tx, pund.ID, actor, models.AuditPaymentMarkedPaid,
			"Cycle %d payment of %s marked paid (penalty %s)",
			p.CycleNumber, displayMember(p.MemberName, p.MemberEmail), p.PenaltyAmount.StringFixed(2))
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListCycles returns every cycle of a pund with its payments and totals.
// Owner only.
func (l *Ledger) ListCycles(ctx context.Context, pundID, actor uuid.UUID) ([]*models.SavingCycle, error) {
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
	payments, err := l.storage.ListPundPayments(ctx, pundID)
	if err != nil {
		return nil, err
	}

	byCycle := make(map[uuid.UUID]*models.SavingCycle, len(cycles))
	for _, c := range cycles {
		byCycle[c.ID] = c
	}
	for _, p := range payments {
		if c, ok := byCycle[p.CycleID]; ok {
			c.Payments = append(c.Payments, p)
		}
	}
	for _, c := range cycles {
		summarizeCycle(c)
	}
	return cycles, nil
}

// ListPayments returns every payment of a pund. Owner only.
func (l *Ledger) ListPayments(ctx context.Context, pundID, actor uuid.UUID) ([]*models.Payment, error) {
	if _, err := l.storage.GetPund(ctx, pundID); err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, l.storage, pundID, actor); err != nil {
		return nil, err
	}
	return l.storage.ListPundPayments(ctx, pundID)
}

func summarizeCycle(c *models.SavingCycle) {
	c.TotalExpected = decimal.Zero
	c.TotalCollected = decimal.Zero
	c.TotalPenalties = decimal.Zero
	c.PaidCount = 0
	for _, p := range c.Payments {
		c.TotalExpected = c.TotalExpected.Add(p.Amount)
		c.TotalPenalties = c.TotalPenalties.Add(p.PenaltyAmount)
		if p.IsPaid {
			c.TotalCollected = c.TotalCollected.Add(p.Amount)
			c.PaidCount++
		}
	}
	c.Progress = money.Percent(c.TotalCollected, c.TotalExpected)
}

// isOverdue reports whether a due date has passed. Payments are due through
// the end of their due day.
func isOverdue(due, now time.Time) bool {
	return models.Date(due).Before(models.Date(now))
}

func displayMember(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
