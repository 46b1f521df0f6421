package main

import (
	"net/http"

	"github.com/mcclellann/pundLedger/pkg/ledger"
	"github.com/mcclellann/pundLedger/pkg/models"
)

func (s *Server) myPundsHandler(w http.ResponseWriter, r *http.Request) {
	punds, err := s.ledger.MyPunds(r.Context(), actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, punds)
}

func (s *Server) createPundHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string          `json:"name"`
		Type        models.PundType `json:"pund_type"`
		Description string          `json:"description"`
	}
	if err := decode(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.ledger.CreatePund(r.Context(), actor(r), in.Name, in.Type, in.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) pundDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.ledger.PundDetail(r.Context(), id, actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in ledger.MemberParams
	if err := decode(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.ledger.AddMember(r.Context(), id, actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) closePundHandler(w http.ResponseWriter, r *http.Request) {
	s.togglePund(w, r, s.ledger.ClosePund)
}

func (s *Server) reopenPundHandler(w http.ResponseWriter, r *http.Request) {
	s.togglePund(w, r, s.ledger.ReopenPund)
}

func (s *Server) togglePund(w http.ResponseWriter, r *http.Request, op pundOp) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := op(r.Context(), id, actor(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.ledger.PundDetail(r.Context(), id, actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail.Pund)
}
