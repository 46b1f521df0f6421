package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/pundLedger/pkg/apperr"
	"github.com/mcclellann/pundLedger/pkg/auth"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error  string            `json:"error"`
	Kind   apperr.Kind       `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindNoStructure, apperr.KindStructureNotEffective, apperr.KindInsufficientFunds:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindAlreadyPaid:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto the JSON envelope. Anything that is not
// a domain error is logged and reported as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, statusFor(e.Kind), errorBody{Error: e.Message, Kind: e.Kind, Fields: e.Fields})
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return apperr.Invalid("body", "must be valid JSON")
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, apperr.Invalid("id", "must be a UUID")
	}
	return id, nil
}

// actor is the user id of the authenticated caller. Routes behind
// authenticate always carry a session.
func actor(r *http.Request) uuid.UUID {
	sess, _ := auth.SessionFrom(r.Context())
	return sess.UserID
}

type pundOp func(ctx context.Context, id, actor uuid.UUID) error

// byID serves the common shape of a route that takes the {id} path variable
// and returns one value for the caller.
func byID[T any](s *Server, w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, id, actor uuid.UUID) (T, error)) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := fn(r.Context(), id, actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}
