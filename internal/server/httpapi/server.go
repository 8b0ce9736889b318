// Package httpapi exposes the record, integrity, workflow and e-sign
// operations over HTTP. Handlers only translate between JSON and service
// calls; every rule lives in the services.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/go-chi/chi/v5"
)

// Services bundles the operations the adapter serves.
type Services struct {
	Records   RecordService
	Integrity IntegrityService
	Ledger    LedgerService
	Workflow  WorkflowService
	Esign     EsignService
	Actors    ActorService
}

type Server struct {
	address         string
	svc             Services
	logger          logging.Logger
	jwtSecret       []byte
	shutdownTimeout time.Duration
}

func NewServer(a string, l logging.Logger, svc Services, secretKey string, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         a,
		logger:          l.With("module", "http_server"),
		svc:             svc,
		jwtSecret:       []byte(secretKey),
		shutdownTimeout: shutdownTimeout,
	}
}

// Handler builds the router. Everything except login and health requires a
// bearer token.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/records/{type}", s.createRecord)
			r.Get("/records/{type}", s.listRecords)

			r.Route("/records/{type}/{id}", func(r chi.Router) {
				r.Get("/", s.getRecord)
				r.Patch("/", s.updateRecord)
				r.Get("/history", s.history)

				r.Get("/canonical", s.canonical)
				r.Get("/artifacts", s.listArtifacts)
				r.Post("/artifacts", s.submitArtifact)
				r.Get("/approval-status", s.approvalStatus)

				r.Get("/signature-requests", s.listPendingRequests)
				r.Post("/signature-requests", s.createRequest)
				r.Post("/signature-requests/{requestID}/mark-signed", s.markSigned)

				r.Get("/transitions", s.allowedTargets)
				r.Post("/transitions", s.transition)
				r.Post("/esign", s.esign)
				r.Get("/signatures", s.listSignatures)

				r.Get("/tasks", s.listTasks)
				r.Post("/tasks", s.addTask)
				r.Post("/tasks/{taskID}/complete", s.completeTask)
				r.Put("/waiver", s.recordWaiver)
				r.Get("/attachments", s.listAttachments)
				r.Post("/attachments", s.addAttachment)
			})
		})
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
