package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type stubSource struct {
	report *models.PundReport
	err    error
}

func (s stubSource) Report(ctx context.Context, pundID, actor uuid.UUID) (*models.PundReport, error) {
	return s.report, s.err
}

type recordingArchiver struct {
	keys []string
	body []byte
	err  error
}

func (a *recordingArchiver) Archive(ctx context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	a.body = body
	return nil
}

func sampleReport() *models.PundReport {
	due := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	paid := due.Add(-time.Hour)
	loanID := uuid.New()
	return &models.PundReport{
		Pund: &models.Pund{ID: uuid.New(), Name: "Market, Women", Type: models.PundTypeWeekly, IsActive: true},
		Fund: &models.FundSummary{TotalCollected: decimal.NewFromInt(1000), AvailableFund: decimal.NewFromInt(400)},
		Savings: &models.SavingSummary{
			TotalCycles:  1,
			TotalMembers: 2,
		},
		Payments: []*models.Payment{
			{CycleNumber: 1, MemberName: "A", MemberEmail: "a@example.com", DueDate: due, Amount: decimal.NewFromInt(500), IsPaid: true, PaidAt: &paid},
			{CycleNumber: 1, MemberName: "B", MemberEmail: "b@example.com", DueDate: due, Amount: decimal.NewFromInt(500)},
		},
		Loans: []*models.Loan{{
			ID:                 loanID,
			MemberName:         "A",
			Status:             models.LoanStatusApproved,
			Principal:          decimal.NewFromInt(600),
			InterestPercentage: decimal.NewFromInt(10),
			TotalPayable:       decimal.NewFromInt(660),
			RemainingAmount:    decimal.NewFromInt(660),
			Cycles:             2,
			Installments: []*models.Installment{
				{LoanID: loanID, CycleNumber: 1, DueDate: due, EMIAmount: decimal.NewFromInt(330)},
				{LoanID: loanID, CycleNumber: 2, DueDate: due.AddDate(0, 0, 7), EMIAmount: decimal.NewFromInt(330)},
			},
		}},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestWriteCSV_Sections(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV back: %v", err)
	}
	if records[0][1] != "Market, Women" {
		t.Errorf("Expected quoted pund name to round trip, got %q", records[0][1])
	}

	// Blank separator rows are skipped by the reader, so sections are found by header.
	index := map[string]int{}
	for i, rec := range records {
		switch {
		case rec[0] == "Cycle" && len(rec) > 1 && rec[1] == "Member":
			index["payments"] = i
		case rec[0] == "Loan ID" && len(rec) > 1 && rec[1] == "Member":
			index["loans"] = i
		case rec[0] == "Loan ID" && len(rec) > 1 && rec[1] == "Installment":
			index["installments"] = i
		}
	}
	if len(index) != 3 {
		t.Fatalf("Expected 3 tabular sections, got %v", index)
	}
	if n := index["loans"] - index["payments"] - 1; n != 2 {
		t.Errorf("Expected 2 payment rows, got %d", n)
	}
	if n := index["installments"] - index["loans"] - 1; n != 1 {
		t.Errorf("Expected 1 loan row, got %d", n)
	}
	if n := len(records) - index["installments"] - 1; n != 2 {
		t.Errorf("Expected 2 installment rows, got %d", n)
	}
	if got := records[index["payments"]+1][7]; got != "2026-03-08T23:00:00Z" {
		t.Errorf("Expected paid-at timestamp, got %q", got)
	}
}

func TestExporter_ArchivesUnderPundPrefix(t *testing.T) {
	rep := sampleReport()
	arch := &recordingArchiver{}
	e := NewExporter(stubSource{report: rep}, arch, quietLogger())
	e.now = func() time.Time { return time.Date(2026, time.March, 9, 12, 30, 0, 0, time.UTC) }

	out, err := e.Export(context.Background(), rep.Pund.ID, uuid.New())
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	want := "reports/" + rep.Pund.ID.String() + "/20260309T123000Z.csv"
	if out.Key != want || len(arch.keys) != 1 || arch.keys[0] != want {
		t.Errorf("Expected archive key %s, got %q (%v)", want, out.Key, arch.keys)
	}
	if !bytes.Equal(arch.body, out.Body) {
		t.Error("Expected the archived bytes to match the served bytes")
	}
	if !strings.HasSuffix(out.Filename, ".csv") {
		t.Errorf("Unexpected filename %s", out.Filename)
	}
}

func TestExporter_Failures(t *testing.T) {
	rep := sampleReport()

	e := NewExporter(stubSource{report: rep}, &recordingArchiver{err: errors.New("bucket missing")}, quietLogger())
	if _, err := e.Export(context.Background(), rep.Pund.ID, uuid.New()); err == nil {
		t.Error("Expected an archive failure to be reported")
	}

	e = NewExporter(stubSource{err: apperr.Forbidden("only the owner can export")}, nil, quietLogger())
	_, err := e.Export(context.Background(), rep.Pund.ID, uuid.New())
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("Expected forbidden to pass through, got %v", err)
	}

	e = NewExporter(stubSource{report: rep}, nil, quietLogger())
	out, err := e.Export(context.Background(), rep.Pund.ID, uuid.New())
	if err != nil || out.Key != "" {
		t.Errorf("Expected an unarchived export, got %+v (%v)", out, err)
	}
}
