package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
)

const cycleColumns = `id, pund_id, sequence, due_date, structure_id, created_at`

// CreateCycle inserts a saving cycle. Payments are inserted separately.
func (q *queries) CreateCycle(ctx context.Context, c *models.SavingCycle) error {
	_, err := q.exec(ctx,
		`INSERT INTO saving_cycles (`+cycleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PundID, c.Sequence, c.DueDate.UTC(), c.StructureID, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create cycle: %w", err)
	}
	return nil
}

// MaxCycleSequence returns the highest cycle sequence of a pund, 0 if none.
func (q *queries) MaxCycleSequence(ctx context.Context, pundID uuid.UUID) (int, error) {
	var max int
	err := q.queryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM saving_cycles WHERE pund_id = ?`, pundID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max cycle sequence: %w", err)
	}
	return max, nil
}

// ListCycles retrieves the cycles of a pund in sequence order, without payments.
func (q *queries) ListCycles(ctx context.Context, pundID uuid.UUID) ([]*models.SavingCycle, error) {
	rows, err := q.query(ctx, `SELECT `+cycleColumns+` FROM saving_cycles WHERE pund_id = ? ORDER BY sequence`, pundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.SavingCycle
	for rows.Next() {
		var c models.SavingCycle
		if err := rows.Scan(&c.ID, &c.PundID, &c.Sequence, &c.DueDate, &c.StructureID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		c.DueDate = c.DueDate.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		cycles = append(cycles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return cycles, nil
}

// Payments

const paymentSelect = `SELECT p.id, p.cycle_id, p.pund_id, p.member_id, p.cycle_number, p.due_date, p.amount,
	p.penalty_amount, p.is_paid, p.paid_at, p.created_at, u.email, u.name
	FROM payments p JOIN users u ON u.id = p.member_id`

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var paidAt sql.NullTime
	if err := row.Scan(&p.ID, &p.CycleID, &p.PundID, &p.MemberID, &p.CycleNumber, &p.DueDate, &p.Amount,
		&p.PenaltyAmount, &p.IsPaid, &paidAt, &p.CreatedAt, &p.MemberEmail, &p.MemberName); err != nil {
		return nil, err
	}
	p.DueDate = p.DueDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}

func (q *queries) listPayments(ctx context.Context, where string, args ...any) ([]*models.Payment, error) {
	rows, err := q.query(ctx, paymentSelect+` WHERE `+where+` ORDER BY p.cycle_number, u.email`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

// CreatePayment inserts a member's obligation for a cycle.
func (q *queries) CreatePayment(ctx context.Context, p *models.Payment) error {
	_, err := q.exec(ctx,
		`INSERT INTO payments (id, cycle_id, pund_id, member_id, cycle_number, due_date, amount, penalty_amount, is_paid, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CycleID, p.PundID, p.MemberID, p.CycleNumber, p.DueDate.UTC(), p.Amount, p.PenaltyAmount,
		p.IsPaid, nullTime(p.PaidAt), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (q *queries) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(q.queryRow(ctx, paymentSelect+` WHERE p.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return p, nil
}

// UpdatePayment stores the paid state and penalty of a payment.
func (q *queries) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return q.execOne(ctx, "payment",
		`UPDATE payments SET penalty_amount = ?, is_paid = ?, paid_at = ? WHERE id = ?`,
		p.PenaltyAmount, p.IsPaid, nullTime(p.PaidAt), p.ID,
	)
}

// ListPundPayments retrieves every payment of a pund.
func (q *queries) ListPundPayments(ctx context.Context, pundID uuid.UUID) ([]*models.Payment, error) {
	return q.listPayments(ctx, `p.pund_id = ?`, pundID)
}

// ListMemberPayments retrieves every payment owed by a user across punds.
func (q *queries) ListMemberPayments(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	return q.listPayments(ctx, `p.member_id = ?`, userID)
}

// ListOverduePayments retrieves unpaid payments of a pund due before asOf.
func (q *queries) ListOverduePayments(ctx context.Context, pundID uuid.UUID, asOf time.Time) ([]*models.Payment, error) {
	return q.listPayments(ctx, `p.pund_id = ? AND p.is_paid = ? AND p.due_date < ?`, pundID, false, asOf.UTC())
}
