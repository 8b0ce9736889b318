package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/go-chi/chi/v5"
)

func (s *Server) canonical(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Integrity.CanonicalPayload(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, canonicalDTO{
		EntityType:    string(p.EntityType),
		EntityID:      p.EntityID,
		RecordVersion: p.RecordVersion,
		Hash:          p.Hash,
		Canonical:     string(p.Canonical),
	})
}

// submitArtifact stores the artifact whatever the verification outcome;
// a STALE or INVALID result is still a 201.
func (s *Server) submitArtifact(w http.ResponseWriter, r *http.Request) {
	var req submitArtifactRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var sig []byte
	if strings.TrimSpace(req.Signature) != "" {
		b, err := signature.DecodeSignature(req.Signature)
		if err != nil {
			s.writeServiceError(w, r, common.NewValidationError("signature", "must be base64"))
			return
		}
		sig = b
	}

	res, err := s.svc.Integrity.SubmitArtifact(r.Context(), services.SubmitArtifactInput{
		EntityType:    chi.URLParam(r, "type"),
		EntityID:      chi.URLParam(r, "id"),
		RecordVersion: req.RecordVersion,
		QMSHash:       req.QMSHash,
		Signature:     sig,
		SignedAt:      req.SignedAt,
		CorrelationID: req.CorrelationID,
		SubmittedBy:   actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, artifactResultDTO{
		Artifact:     toArtifact(res.Artifact),
		Verification: toVerification(&res.Verification),
	})
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Integrity.ListArtifacts(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toArtifact))
}

func (s *Server) approvalStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Integrity.ApprovalStatus(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalStatus(st))
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out, err := s.svc.Ledger.CreateRequest(r.Context(), services.CreateRequestInput{
		EntityType:    chi.URLParam(r, "type"),
		EntityID:      chi.URLParam(r, "id"),
		RecordVersion: req.RecordVersion,
		ExpectedHash:  req.ExpectedHash,
		CorrelationID: req.CorrelationID,
		Notes:         req.Notes,
		RequestedBy:   actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSignatureRequest(out))
}

func (s *Server) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Ledger.ListPending(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toSignatureRequest))
}

func (s *Server) markSigned(w http.ResponseWriter, r *http.Request) {
	var req markSignedRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Ledger.MarkSigned(r.Context(), chi.URLParam(r, "requestID"), req.ArtifactID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
