package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundSummary is the cash position of a pund. AvailableFund counts
// repayments as they arrive, so interest only enters it once the installment
// carrying it is paid:
//
//	available = collected + repayments - disbursed
//
// CollectedLessActivePrincipal is collected minus the principal still out on
// approved loans. Repayments are not in it, so the two figures agree until
// the first installment is paid and diverge afterwards.
type FundSummary struct {
	PundID                  uuid.UUID       `json:"pund_id"`
	TotalCollected          decimal.Decimal `json:"total_collected"`
	LoanRepaymentsCollected decimal.Decimal `json:"loan_repayments_collected"`
	TotalDisbursed          decimal.Decimal `json:"total_disbursed"`
	ActiveLoanPrincipal     decimal.Decimal `json:"active_loan_principal"`
	ActiveLoanOutstanding   decimal.Decimal `json:"active_loan_outstanding"`
	AvailableFund           decimal.Decimal `json:"available_fund"`

	CollectedLessActivePrincipal decimal.Decimal `json:"collected_less_active_principal"`
}

type SavingSummary struct {
	PundID                  uuid.UUID       `json:"pund_id"`
	TotalCycles             int             `json:"total_cycles"`
	TotalMembers            int             `json:"total_members"`
	TotalExpected           decimal.Decimal `json:"total_expected_savings"`
	TotalPaid               decimal.Decimal `json:"total_paid_savings"`
	TotalUnpaid             decimal.Decimal `json:"total_unpaid_savings"`
	TotalPenaltiesCollected decimal.Decimal `json:"total_penalties_collected"`
	TotalPenaltiesPending   decimal.Decimal `json:"total_penalties_pending"`
}

type MemberSavingSummary struct {
	TotalSavingsPaid   decimal.Decimal `json:"total_savings_paid"`
	TotalSavingPenalty decimal.Decimal `json:"total_saving_penalty"`
	TotalUnpaidSavings decimal.Decimal `json:"total_unpaid_savings"`
}

type MemberLoanSummary struct {
	LoanID           uuid.UUID       `json:"loan_id"`
	PundID           uuid.UUID       `json:"pund_id"`
	PundName         string          `json:"pund_name"`
	Principal        decimal.Decimal `json:"principal"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount"`
	Status           LoanStatus      `json:"status"`
	TotalEMIPaid     decimal.Decimal `json:"total_emi_paid"`
	TotalLoanPenalty decimal.Decimal `json:"total_loan_penalty"`
	Progress         decimal.Decimal `json:"progress"`
}

type FinancialSummary struct {
	SavingSummary MemberSavingSummary `json:"saving_summary"`
	LoanSummaries []MemberLoanSummary `json:"loan_summaries"`
}

// PundDetail is the role-dependent view of one pund.
type PundDetail struct {
	Pund             *Pund         `json:"pund"`
	Role             Role          `json:"role"`
	MembershipActive bool          `json:"membership_active"`
	Structure        *Structure    `json:"structure"`
	PendingStructure *Structure    `json:"pending_structure,omitempty"`
	TotalMembers     int           `json:"total_members,omitempty"`
	Members          []*Membership `json:"members,omitempty"`
	MyPayments       []*Payment    `json:"my_payments,omitempty"`
}

type MyPund struct {
	PundID           uuid.UUID `json:"pund_id"`
	PundName         string    `json:"pund_name"`
	PundType         PundType  `json:"pund_type"`
	PundActive       bool      `json:"pund_active"`
	MembershipActive bool      `json:"membership_active"`
	Role             Role      `json:"role"`
}

// PundReport is everything an owner export contains.
type PundReport struct {
	Pund     *Pund          `json:"pund"`
	Fund     *FundSummary   `json:"fund"`
	Savings  *SavingSummary `json:"savings"`
	Payments []*Payment     `json:"payments"`
	Loans    []*Loan        `json:"loans"` // with installments
}
