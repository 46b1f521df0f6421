package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PundType string

const (
	PundTypeDaily   PundType = "DAILY"
	PundTypeWeekly  PundType = "WEEKLY"
	PundTypeMonthly PundType = "MONTHLY"
)

// Valid reports whether t is one of the supported cadences.
func (t PundType) Valid() bool {
	switch t {
	case PundTypeDaily, PundTypeWeekly, PundTypeMonthly:
		return true
	}
	return false
}

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "PENDING"
	LoanStatusApproved LoanStatus = "APPROVED"
	LoanStatusRejected LoanStatus = "REJECTED"
	LoanStatusClosed   LoanStatus = "CLOSED"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"` // false for invited users until they register
	CreatedAt    time.Time `json:"created_at"`
}

type Pund struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        PundType  `json:"pund_type"`
	IsActive    bool      `json:"is_active"`
	OwnerID     uuid.UUID `json:"owner_id"`
	StartDate   time.Time `json:"start_date"` // anchor of the cycle calendar
	CreatedAt   time.Time `json:"created_at"`
}

type Membership struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	PundID   uuid.UUID `json:"pund_id"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"membership_active"`
	JoinedAt time.Time `json:"joined_at"`

	// Filled by joined queries.
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Structure is one version of a pund's contribution and loan rules.
type Structure struct {
	ID                     uuid.UUID       `json:"id"`
	PundID                 uuid.UUID       `json:"pund_id"`
	SavingAmount           decimal.Decimal `json:"saving_amount"`
	LoanInterestPercentage decimal.Decimal `json:"loan_interest_percentage"`
	MissedSavingPenalty    decimal.Decimal `json:"missed_saving_penalty"`
	MissedLoanPenalty      decimal.Decimal `json:"missed_loan_penalty"`
	DefaultLoanCycles      int             `json:"default_loan_cycles"`
	EffectiveFrom          time.Time       `json:"effective_from"`
	CreatedAt              time.Time       `json:"created_at"`
}

// IsEffective reports whether the structure applies on the day of asOf.
func (s *Structure) IsEffective(asOf time.Time) bool {
	return !Date(s.EffectiveFrom).After(Date(asOf))
}

type SavingCycle struct {
	ID          uuid.UUID  `json:"id"`
	PundID      uuid.UUID  `json:"pund_id"`
	Sequence    int        `json:"cycle_number"`
	DueDate     time.Time  `json:"due_date"`
	StructureID uuid.UUID  `json:"structure_id"`
	CreatedAt   time.Time  `json:"created_at"`
	Payments    []*Payment `json:"payments"`

	// Derived from Payments.
	TotalExpected  decimal.Decimal `json:"total_expected"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalPenalties decimal.Decimal `json:"total_penalties"`
	PaidCount      int             `json:"paid_count"`
	Progress       decimal.Decimal `json:"progress"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	CycleID       uuid.UUID       `json:"cycle_id"`
	PundID        uuid.UUID       `json:"pund_id"`
	MemberID      uuid.UUID       `json:"member_id"`
	CycleNumber   int             `json:"cycle_number"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`         // saving amount frozen at cycle creation
	PenaltyAmount decimal.Decimal `json:"penalty_amount"` // zero until assessed, assessed once
	IsPaid        bool            `json:"is_paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	MemberEmail string `json:"member_email,omitempty"`
	MemberName  string `json:"member_name,omitempty"`
}

type Loan struct {
	ID                 uuid.UUID       `json:"id"`
	PundID             uuid.UUID       `json:"pund_id"`
	MemberID           uuid.UUID       `json:"member_id"`
	Principal          decimal.Decimal `json:"principal"`
	InterestPercentage decimal.Decimal `json:"interest_percentage"` // frozen at approval
	MissedLoanPenalty  decimal.Decimal `json:"missed_loan_penalty"` // frozen at approval
	Status             LoanStatus      `json:"status"`
	TotalPayable       decimal.Decimal `json:"total_payable"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	Cycles             int             `json:"cycles"`
	ApprovedBy         *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Installments []*Installment  `json:"installments,omitempty"`
	Progress     decimal.Decimal `json:"progress"`

	MemberEmail string `json:"member_email,omitempty"`
	MemberName  string `json:"member_name,omitempty"`
	PundName    string `json:"pund_name,omitempty"`
}

// IsOpen reports whether the loan still blocks a new request by the same member.
func (l *Loan) IsOpen() bool {
	return l.Status == LoanStatusPending || l.Status == LoanStatusApproved
}

type Installment struct {
	ID            uuid.UUID       `json:"id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	CycleNumber   int             `json:"cycle_number"`
	DueDate       time.Time       `json:"due_date"`
	EMIAmount     decimal.Decimal `json:"emi_amount"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount"`
	IsPaid        bool            `json:"is_paid"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

// Due is the amount that settles the installment.
func (i *Installment) Due() decimal.Decimal {
	return i.EMIAmount.Add(i.PenaltyAmount)
}

type AuditAction string

const (
	AuditPundCreated       AuditAction = "Pund created"
	AuditMemberAdded       AuditAction = "Member added"
	AuditPundClosed        AuditAction = "Pund closed"
	AuditPundReopened      AuditAction = "Pund reopened"
	AuditStructureUpdated  AuditAction = "Structure updated"
	AuditCycleGenerated    AuditAction = "Cycle generated"
	AuditPaymentMarkedPaid AuditAction = "Payment marked paid"
	AuditPenaltyAssessed   AuditAction = "Penalty assessed"
	AuditLoanRequested     AuditAction = "Loan requested"
	AuditLoanApproved      AuditAction = "Loan approved"
	AuditLoanRejected      AuditAction = "Loan rejected"
	AuditInstallmentPaid   AuditAction = "Installment paid"
	AuditLoanClosed        AuditAction = "Loan closed"
)

// SystemActor is the performed_by label for entries without a user.
const SystemActor = "System"

type AuditLogEntry struct {
	ID              uuid.UUID   `json:"id"`
	PundID          uuid.UUID   `json:"pund_id"`
	Action          AuditAction `json:"action"`
	Description     string      `json:"description"`
	PerformedByID   *uuid.UUID  `json:"performed_by_id,omitempty"` // nil for System
	PerformedByName string      `json:"performed_by"`
	Timestamp       time.Time   `json:"timestamp"`
}

// Date truncates t to midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
