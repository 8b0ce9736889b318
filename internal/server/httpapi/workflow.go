package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func (s *Server) allowedTargets(w http.ResponseWriter, r *http.Request) {
	allowed, err := s.svc.Workflow.AllowedTargets(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"allowed": allowed})
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rec, err := s.svc.Workflow.Transition(r.Context(), services.TransitionInput{
		EntityType: chi.URLParam(r, "type"),
		EntityID:   chi.URLParam(r, "id"),
		To:         req.To,
		Reason:     req.Reason,
		ActorID:    actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecord(rec))
}

// esign re-authenticates the caller with the password in the body. The
// bearer token alone never authorizes a gated transition.
func (s *Server) esign(w http.ResponseWriter, r *http.Request) {
	var req esignRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.svc.Esign.Sign(r.Context(), services.EsignInput{
		EntityType: chi.URLParam(r, "type"),
		EntityID:   chi.URLParam(r, "id"),
		Meaning:    req.Meaning,
		ActorID:    actorID(r.Context()),
		Password:   []byte(req.Password),
		Reason:     req.Reason,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, esignResponse{
		Signature: toLocalSignature(res.Signature),
		Record:    toRecord(res.Record),
	})
}

func (s *Server) listSignatures(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Esign.ListSignatures(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toLocalSignature))
}
