package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
)

const loanSelect = `SELECT l.id, l.pund_id, l.member_id, l.principal, l.interest_percentage, l.missed_loan_penalty,
	l.status, l.total_payable, l.remaining_amount, l.cycles, l.approved_by, l.approved_at, l.created_at, l.updated_at,
	u.email, u.name, pd.name
	FROM loans l JOIN users u ON u.id = l.member_id JOIN punds pd ON pd.id = l.pund_id`

func scanLoan(row scanner) (*models.Loan, error) {
	var loan models.Loan
	var approvedBy uuid.NullUUID
	var approvedAt sql.NullTime
	if err := row.Scan(&loan.ID, &loan.PundID, &loan.MemberID, &loan.Principal, &loan.InterestPercentage,
		&loan.MissedLoanPenalty, &loan.Status, &loan.TotalPayable, &loan.RemainingAmount, &loan.Cycles,
		&approvedBy, &approvedAt, &loan.CreatedAt, &loan.UpdatedAt,
		&loan.MemberEmail, &loan.MemberName, &loan.PundName); err != nil {
		return nil, err
	}
	loan.ApprovedBy = uuidPtr(approvedBy)
	loan.ApprovedAt = timePtr(approvedAt)
	loan.CreatedAt = loan.CreatedAt.UTC()
	loan.UpdatedAt = loan.UpdatedAt.UTC()
	return &loan, nil
}

func (q *queries) listLoans(ctx context.Context, where string, arg any) ([]*models.Loan, error) {
	rows, err := q.query(ctx, loanSelect+` WHERE `+where+` ORDER BY l.created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateLoan inserts a new loan into the database.
func (q *queries) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := q.exec(ctx,
		`INSERT INTO loans (id, pund_id, member_id, principal, interest_percentage, missed_loan_penalty, status,
		total_payable, remaining_amount, cycles, approved_by, approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.PundID, loan.MemberID, loan.Principal, loan.InterestPercentage, loan.MissedLoanPenalty,
		loan.Status, loan.TotalPayable, loan.RemainingAmount, loan.Cycles, nullUUID(loan.ApprovedBy),
		nullTime(loan.ApprovedAt), loan.CreatedAt.UTC(), loan.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID, without installments.
func (q *queries) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	loan, err := scanLoan(q.queryRow(ctx, loanSelect+` WHERE l.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "loan")
	}
	return loan, nil
}

// UpdateLoan updates an existing loan in the database.
func (q *queries) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	return q.execOne(ctx, "loan",
		`UPDATE loans SET interest_percentage = ?, missed_loan_penalty = ?, status = ?, total_payable = ?,
		remaining_amount = ?, cycles = ?, approved_by = ?, approved_at = ?, updated_at = ? WHERE id = ?`,
		loan.InterestPercentage, loan.MissedLoanPenalty, loan.Status, loan.TotalPayable, loan.RemainingAmount,
		loan.Cycles, nullUUID(loan.ApprovedBy), nullTime(loan.ApprovedAt), loan.UpdatedAt.UTC(), loan.ID,
	)
}

// ListPundLoans retrieves every loan of a pund.
func (q *queries) ListPundLoans(ctx context.Context, pundID uuid.UUID) ([]*models.Loan, error) {
	return q.listLoans(ctx, `l.pund_id = ?`, pundID)
}

// ListMemberLoans retrieves every loan taken by a user.
func (q *queries) ListMemberLoans(ctx context.Context, userID uuid.UUID) ([]*models.Loan, error) {
	return q.listLoans(ctx, `l.member_id = ?`, userID)
}

// Installments

const installmentColumns = `i.id, i.loan_id, i.cycle_number, i.due_date, i.emi_amount, i.penalty_amount, i.is_paid, i.paid_at`

func scanInstallment(row scanner) (*models.Installment, error) {
	var inst models.Installment
	var paidAt sql.NullTime
	if err := row.Scan(&inst.ID, &inst.LoanID, &inst.CycleNumber, &inst.DueDate, &inst.EMIAmount,
		&inst.PenaltyAmount, &inst.IsPaid, &paidAt); err != nil {
		return nil, err
	}
	inst.DueDate = inst.DueDate.UTC()
	inst.PaidAt = timePtr(paidAt)
	return &inst, nil
}

func (q *queries) listInstallments(ctx context.Context, query string, args ...any) ([]*models.Installment, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var out []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

// CreateInstallment inserts one row of a loan's repayment schedule.
func (q *queries) CreateInstallment(ctx context.Context, inst *models.Installment) error {
	_, err := q.exec(ctx,
		`INSERT INTO installments (id, loan_id, cycle_number, due_date, emi_amount, penalty_amount, is_paid, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.LoanID, inst.CycleNumber, inst.DueDate.UTC(), inst.EMIAmount, inst.PenaltyAmount,
		inst.IsPaid, nullTime(inst.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

// GetInstallment retrieves an installment by ID.
func (q *queries) GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error) {
	inst, err := scanInstallment(q.queryRow(ctx, `SELECT `+installmentColumns+` FROM installments i WHERE i.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "installment")
	}
	return inst, nil
}

// UpdateInstallment stores the paid state and penalty of an installment.
func (q *queries) UpdateInstallment(ctx context.Context, inst *models.Installment) error {
	return q.execOne(ctx, "installment",
		`UPDATE installments SET penalty_amount = ?, is_paid = ?, paid_at = ? WHERE id = ?`,
		inst.PenaltyAmount, inst.IsPaid, nullTime(inst.PaidAt), inst.ID,
	)
}

// ListInstallments retrieves a loan's schedule in cycle order.
func (q *queries) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	return q.listInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments i WHERE i.loan_id = ? ORDER BY i.cycle_number`, loanID)
}

// ListPundInstallments retrieves the installments of every loan in a pund.
func (q *queries) ListPundInstallments(ctx context.Context, pundID uuid.UUID) ([]*models.Installment, error) {
	return q.listInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments i JOIN loans l ON l.id = i.loan_id
		WHERE l.pund_id = ? ORDER BY l.created_at, i.cycle_number`, pundID)
}

// ListOverdueInstallments retrieves unpaid installments of approved loans due before asOf.
func (q *queries) ListOverdueInstallments(ctx context.Context, pundID uuid.UUID, asOf time.Time) ([]*models.Installment, error) {
	return q.listInstallments(ctx,
		`SELECT `+installmentColumns+` FROM installments i JOIN loans l ON l.id = i.loan_id
		WHERE l.pund_id = ? AND l.status = ? AND i.is_paid = ? AND i.due_date < ?
		ORDER BY i.due_date`, pundID, models.LoanStatusApproved, false, asOf.UTC())
}

// Audit log

// AppendAudit inserts an audit entry. Entries are never updated or deleted.
// seq numbers a pund's entries in write order; callers hold the pund lock.
func (q *queries) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	_, err := q.exec(ctx,
		`INSERT INTO audit_logs (id, pund_id, action, description, performed_by, performed_by_name, logged_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_logs WHERE pund_id = ?))`,
		e.ID, e.PundID, e.Action, e.Description, nullUUID(e.PerformedByID), e.PerformedByName, e.Timestamp.UTC(), e.PundID,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit retrieves a pund's audit trail, newest first.
func (q *queries) ListAudit(ctx context.Context, pundID uuid.UUID) ([]*models.AuditLogEntry, error) {
	rows, err := q.query(ctx,
		`SELECT id, pund_id, action, description, performed_by, performed_by_name, logged_at
		FROM audit_logs WHERE pund_id = ? ORDER BY seq DESC`, pundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var by uuid.NullUUID
		if err := rows.Scan(&e.ID, &e.PundID, &e.Action, &e.Description, &by, &e.PerformedByName, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.PerformedByID = uuidPtr(by)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}
