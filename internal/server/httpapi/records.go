package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserName) == "" || req.Password == "" {
		s.writeServiceError(w, r, common.NewValidationError("userName", "user name and password are required"))
		return
	}

	token, err := s.svc.Actors.Login(r.Context(), req.UserName, []byte(req.Password))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token})
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req recordFieldsRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rec, err := s.svc.Records.Create(r.Context(), services.CreateRecordInput{
		EntityType: chi.URLParam(r, "type"),
		Fields:     req.Fields,
		ActorID:    actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecord(rec))
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records.List(r.Context(), chi.URLParam(r, "type"), r.URL.Query().Get("state"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toRecord))
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Records.Get(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecord(rec))
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordFieldsRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rec, err := s.svc.Records.Update(r.Context(), services.UpdateRecordInput{
		EntityType:      chi.URLParam(r, "type"),
		EntityID:        chi.URLParam(r, "id"),
		Fields:          req.Fields,
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecord(rec))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records.History(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toHistory))
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records.Tasks(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toTask))
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	t, err := s.svc.Records.AddTask(r.Context(), services.AddTaskInput{
		EntityType: chi.URLParam(r, "type"),
		EntityID:   chi.URLParam(r, "id"),
		Kind:       req.Kind,
		Title:      req.Title,
		ActorID:    actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTask(t))
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Records.CompleteTask(r.Context(),
		chi.URLParam(r, "type"), chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), actorID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordWaiver(w http.ResponseWriter, r *http.Request) {
	var req waiverRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	wv, err := s.svc.Records.RecordWaiver(r.Context(),
		chi.URLParam(r, "type"), chi.URLParam(r, "id"), req.Justification, actorID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, waiverDTO{Justification: wv.Justification, ActorID: wv.ActorID, CreatedAt: wv.CreatedAt})
}

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records.Attachments(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toAttachment))
}

// addAttachment registers the file and, when object storage is configured,
// returns a presigned URL the client uploads the bytes to.
func (s *Server) addAttachment(w http.ResponseWriter, r *http.Request) {
	var req attachmentRequest
	if err := readJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	a, url, err := s.svc.Records.AddAttachment(r.Context(), services.AddAttachmentInput{
		EntityType: chi.URLParam(r, "type"),
		EntityID:   chi.URLParam(r, "id"),
		Kind:       req.Kind,
		FileName:   req.FileName,
		ActorID:    actorID(r.Context()),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachmentResponse{Attachment: toAttachment(a), UploadURL: url})
}
