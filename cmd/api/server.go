package main

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/mcclellann/pundLedger/pkg/auth"
	"github.com/mcclellann/pundLedger/pkg/ledger"
	"github.com/mcclellann/pundLedger/pkg/report"
	"github.com/sirupsen/logrus"
)

// Server exposes the ledger over HTTP.
type Server struct {
	ledger   *ledger.Ledger
	auth     *auth.Service
	exporter *report.Exporter
	logger   *logrus.Logger
}

func NewServer(l *ledger.Ledger, a *auth.Service, e *report.Exporter, logger *logrus.Logger) *Server {
	return &Server{ledger: l, auth: a, exporter: e, logger: logger}
}

// Routes builds the router. Literal paths are registered before the
// {id} routes that would otherwise capture them.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.logger), middleware.Recoverer)

	router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/register/", s.registerHandler).Methods(http.MethodPost)
	router.HandleFunc("/users/login/", s.loginHandler).Methods(http.MethodPost)

	api := router.NewRoute().Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/users/me/", s.meHandler).Methods(http.MethodGet)

	api.HandleFunc("/punds/my-all/", s.myPundsHandler).Methods(http.MethodGet)
	api.HandleFunc("/punds/create/", s.createPundHandler).Methods(http.MethodPost)
	api.HandleFunc("/punds/{id}/", s.pundDetailHandler).Methods(http.MethodGet)
	api.HandleFunc("/punds/{id}/add-member/", s.addMemberHandler).Methods(http.MethodPost)
	api.HandleFunc("/punds/{id}/close/", s.closePundHandler).Methods(http.MethodPost)
	api.HandleFunc("/punds/{id}/reopen/", s.reopenPundHandler).Methods(http.MethodPost)

	fin := api.PathPrefix("/finance").Subrouter()
	fin.HandleFunc("/my-financial-summary/", s.myFinancialSummaryHandler).Methods(http.MethodGet)
	fin.HandleFunc("/my-loans/", s.myLoansHandler).Methods(http.MethodGet)

	fin.HandleFunc("/pund/{id}/set-structure/", s.setStructureHandler).Methods(http.MethodPost)
	fin.HandleFunc("/pund/{id}/generate-cycle/", s.generateCycleHandler).Methods(http.MethodPost)
	fin.HandleFunc("/pund/{id}/cycle-payments/", s.cyclePaymentsHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/all-payments/", s.allPaymentsHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/fund-summary/", s.fundSummaryHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/saving-summary/", s.savingSummaryHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/request-loan/", s.requestLoanHandler).Methods(http.MethodPost)
	fin.HandleFunc("/pund/{id}/loans/", s.pundLoansHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/audit-logs/", s.auditLogsHandler).Methods(http.MethodGet)
	fin.HandleFunc("/pund/{id}/export-report/", s.exportReportHandler).Methods(http.MethodGet)

	fin.HandleFunc("/payment/{id}/mark-paid/", s.markPaymentPaidHandler).Methods(http.MethodPost)

	fin.HandleFunc("/loan/{id}/approve/", s.approveLoanHandler).Methods(http.MethodPost)
	fin.HandleFunc("/loan/{id}/reject/", s.rejectLoanHandler).Methods(http.MethodPost)
	fin.HandleFunc("/loan/{id}/detail/", s.loanDetailHandler).Methods(http.MethodGet)

	fin.HandleFunc("/installment/{id}/mark-paid/", s.markInstallmentPaidHandler).Methods(http.MethodPost)

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
