// Package report renders an owner's pund export and archives it.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/mcclellann/pundLedger/pkg/models"
)

const dateLayout = "2006-01-02"

// WriteCSV writes the report as consecutive sections separated by blank rows:
// summary, payments, loans and installments.
func WriteCSV(w io.Writer, r *models.PundReport) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Pund", r.Pund.Name},
		{"Pund ID", r.Pund.ID.String()},
		{"Type", string(r.Pund.Type)},
		{"Active", strconv.FormatBool(r.Pund.IsActive)},
	}
	if r.Fund != nil {
		rows = append(rows,
			[]string{"Total collected", r.Fund.TotalCollected.StringFixed(2)},
			[]string{"Loan repayments collected", r.Fund.LoanRepaymentsCollected.StringFixed(2)},
			[]string{"Total disbursed", r.Fund.TotalDisbursed.StringFixed(2)},
			[]string{"Active loan outstanding", r.Fund.ActiveLoanOutstanding.StringFixed(2)},
			[]string{"Available fund", r.Fund.AvailableFund.StringFixed(2)},
		)
	}
	if r.Savings != nil {
		rows = append(rows,
			[]string{"Cycles", strconv.Itoa(r.Savings.TotalCycles)},
			[]string{"Members", strconv.Itoa(r.Savings.TotalMembers)},
			[]string{"Expected savings", r.Savings.TotalExpected.StringFixed(2)},
			[]string{"Paid savings", r.Savings.TotalPaid.StringFixed(2)},
			[]string{"Unpaid savings", r.Savings.TotalUnpaid.StringFixed(2)},
			[]string{"Penalties collected", r.Savings.TotalPenaltiesCollected.StringFixed(2)},
			[]string{"Penalties pending", r.Savings.TotalPenaltiesPending.StringFixed(2)},
		)
	}
	rows = append(rows, nil, []string{"Cycle", "Member", "Email", "Due date", "Amount", "Penalty", "Paid", "Paid at"})
	for _, p := range r.Payments {
		rows = append(rows, []string{
			strconv.Itoa(p.CycleNumber),
			p.MemberName,
			p.MemberEmail,
			p.DueDate.Format(dateLayout),
			p.Amount.StringFixed(2),
			p.PenaltyAmount.StringFixed(2),
			strconv.FormatBool(p.IsPaid),
			formatTime(p.PaidAt),
		})
	}

	rows = append(rows, nil, []string{"Loan ID", "Member", "Email", "Status", "Principal", "Interest %", "Total payable", "Remaining", "Cycles", "Approved at"})
	for _, l := range r.Loans {
		rows = append(rows, []string{
			l.ID.String(),
			l.MemberName,
			l.MemberEmail,
			string(l.Status),
			l.Principal.StringFixed(2),
			l.InterestPercentage.String(),
			l.TotalPayable.StringFixed(2),
			l.RemainingAmount.StringFixed(2),
			strconv.Itoa(l.Cycles),
			formatTime(l.ApprovedAt),
		})
	}

	rows = append(rows, nil, []string{"Loan ID", "Installment", "Due date", "EMI", "Penalty", "Paid", "Paid at"})
	for _, l := range r.Loans {
		for _, i := range l.Installments {
			rows = append(rows, []string{
				l.ID.String(),
				strconv.Itoa(i.CycleNumber),
				i.DueDate.Format(dateLayout),
				i.EMIAmount.StringFixed(2),
				i.PenaltyAmount.StringFixed(2),
				strconv.FormatBool(i.IsPaid),
				formatTime(i.PaidAt),
			})
		}
	}

	for _, row := range rows {
		if row == nil {
			row = []string{}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
