package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/models"
)

// Tx is the set of queries available both inside and outside a transaction.
// Lookups of a missing row return an apperr not_found error.
type Tx interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	CreatePund(ctx context.Context, pund *models.Pund) error
	GetPund(ctx context.Context, id uuid.UUID) (*models.Pund, error)
	UpdatePund(ctx context.Context, pund *models.Pund) error
	ListPunds(ctx context.Context) ([]*models.Pund, error)
	// LockPund takes the row lock that serializes every mutation of a pund.
	LockPund(ctx context.Context, id uuid.UUID) error

	CreateMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, pundID, userID uuid.UUID) (*models.Membership, error)
	ListMemberships(ctx context.Context, pundID uuid.UUID) ([]*models.Membership, error)
	ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)
	SetMembershipsActive(ctx context.Context, pundID uuid.UUID, active bool) error

	CreateStructure(ctx context.Context, s *models.Structure) error
	UpdateStructure(ctx context.Context, s *models.Structure) error
	// ListStructures returns every version, newest effective date first.
	ListStructures(ctx context.Context, pundID uuid.UUID) ([]*models.Structure, error)

	CreateCycle(ctx context.Context, c *models.SavingCycle) error
	MaxCycleSequence(ctx context.Context, pundID uuid.UUID) (int, error)
	ListCycles(ctx context.Context, pundID uuid.UUID) ([]*models.SavingCycle, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	ListPundPayments(ctx context.Context, pundID uuid.UUID) ([]*models.Payment, error)
	ListMemberPayments(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
	// ListOverduePayments returns unpaid payments of a pund due before asOf.
	ListOverduePayments(ctx context.Context, pundID uuid.UUID, asOf time.Time) ([]*models.Payment, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListPundLoans(ctx context.Context, pundID uuid.UUID) ([]*models.Loan, error)
	ListMemberLoans(ctx context.Context, userID uuid.UUID) ([]*models.Loan, error)

	CreateInstallment(ctx context.Context, inst *models.Installment) error
	GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error)
	UpdateInstallment(ctx context.Context, inst *models.Installment) error
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)
	ListPundInstallments(ctx context.Context, pundID uuid.UUID) ([]*models.Installment, error)
	// ListOverdueInstallments returns unpaid installments of approved loans
	// in a pund due before asOf.
	ListOverdueInstallments(ctx context.Context, pundID uuid.UUID, asOf time.Time) ([]*models.Installment, error)

	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error
	ListAudit(ctx context.Context, pundID uuid.UUID) ([]*models.AuditLogEntry, error)
}

// Storage defines the database operations of the ledger.
type Storage interface {
	Tx
	// WithTx runs fn in one transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
