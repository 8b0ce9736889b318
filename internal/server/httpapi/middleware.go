package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/auth"
	"github.com/google/uuid"
)

type ctxKey string

const (
	actorIDKey   ctxKey = "actorID"
	requestIDKey ctxKey = "requestID"
)

// parseBearer extracts the token from an Authorization header value.
func parseBearer(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := parseBearer(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing token", nil)
			return
		}

		actorID, err := auth.GetActorIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.logger.Debug(r.Context(), "token rejected", "error", err)
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), actorIDKey, actorID)
		ctx = logging.ContextWith(ctx, "actor_id", actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorID(ctx context.Context) string {
	id, _ := ctx.Value(actorIDKey).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWith(ctx, "request_id", id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error(r.Context(), "handler panic", "panic", v, "path", r.URL.Path)
				writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
