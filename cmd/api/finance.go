package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/ledger"
	"github.com/mcclellann/pundLedger/pkg/models"
	"github.com/shopspring/decimal"
)

type structureRequest struct {
	SavingAmount           decimal.Decimal `json:"saving_amount"`
	LoanInterestPercentage decimal.Decimal `json:"loan_interest_percentage"`
	MissedSavingPenalty    decimal.Decimal `json:"missed_saving_penalty"`
	MissedLoanPenalty      decimal.Decimal `json:"missed_loan_penalty"`
	DefaultLoanCycles      int             `json:"default_loan_cycles"`
	EffectiveFrom          string          `json:"effective_from"`
}

// params accepts effective_from as a plain date or an RFC 3339 timestamp.
func (req structureRequest) params() (ledger.StructureParams, error) {
	p := ledger.StructureParams{
		SavingAmount:           req.SavingAmount,
		LoanInterestPercentage: req.LoanInterestPercentage,
		MissedSavingPenalty:    req.MissedSavingPenalty,
		MissedLoanPenalty:      req.MissedLoanPenalty,
		DefaultLoanCycles:      req.DefaultLoanCycles,
	}
	raw := strings.TrimSpace(req.EffectiveFrom)
	if raw == "" {
		return p, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			p.EffectiveFrom = &t
			return p, nil
		}
	}
	return p, apperr.Invalid("effective_from", "must be a date (YYYY-MM-DD)")
}

func (s *Server) setStructureHandler(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byID(s, w, r, http.StatusOK, func(ctx context.Context, id, actor uuid.UUID) (*models.Structure, error) {
		return s.ledger.SetStructure(ctx, id, actor, params)
	})
}

func (s *Server) generateCycleHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusCreated, s.ledger.GenerateCycle)
}

func (s *Server) markPaymentPaidHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.MarkPaymentPaid)
}

func (s *Server) cyclePaymentsHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.ListCycles)
}

func (s *Server) allPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.ListPayments)
}

func (s *Server) fundSummaryHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.FundSummary)
}

func (s *Server) savingSummaryHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.SavingSummary)
}

func (s *Server) requestLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrincipalAmount decimal.Decimal `json:"principal_amount"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	byID(s, w, r, http.StatusCreated, func(ctx context.Context, id, actor uuid.UUID) (*models.Loan, error) {
		return s.ledger.RequestLoan(ctx, id, actor, req.PrincipalAmount)
	})
}

func (s *Server) pundLoansHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.PundLoans)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cycles *int `json:"cycles"`
	}
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	byID(s, w, r, http.StatusOK, func(ctx context.Context, id, actor uuid.UUID) (*models.Loan, error) {
		return s.ledger.ApproveLoan(ctx, id, actor, req.Cycles)
	})
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.RejectLoan)
}

func (s *Server) loanDetailHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.LoanDetail)
}

func (s *Server) markInstallmentPaidHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.MarkInstallmentPaid)
}

func (s *Server) auditLogsHandler(w http.ResponseWriter, r *http.Request) {
	byID(s, w, r, http.StatusOK, s.ledger.AuditLogs)
}

func (s *Server) myFinancialSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.MyFinancialSummary(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) myLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.MyLoans(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) exportReportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.exporter.Export(r.Context(), id, actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	if out.Key != "" {
		w.Header().Set("X-Report-Archive-Key", out.Key)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out.Body)
}
