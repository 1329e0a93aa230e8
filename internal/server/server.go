// Package server exposes the engine over a loopback-only HTTP API plus
// a ticket-gated WebSocket event stream.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agenthub-dev/agenthub/internal/app"
)

// ProtocolVersion is bumped when event frames or the ws handshake
// change shape.
const ProtocolVersion = 1

// Header carrying the pre-shared key.
const authHeader = "X-Agenthub-Key"

// Server is the HTTP surface over one App instance.
type Server struct {
	app *app.App
	log zerolog.Logger
	mux *http.ServeMux
}

// New builds the server and its routes.
func New(a *app.App) *Server {
	s := &Server{
		app: a,
		log: a.Log.With().Str("component", "server").Logger(),
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/catalog/{kind}", s.auth(s.handleCatalog))

	s.mux.HandleFunc("GET /api/v1/sources", s.auth(s.handleListSources))
	s.mux.HandleFunc("POST /api/v1/sources", s.auth(s.handleRegisterSource))
	s.mux.HandleFunc("GET /api/v1/sources/{id}", s.auth(s.handleGetSource))
	s.mux.HandleFunc("PATCH /api/v1/sources/{id}", s.auth(s.handleUpdateSource))
	s.mux.HandleFunc("DELETE /api/v1/sources/{id}", s.auth(s.handleRemoveSource))
	s.mux.HandleFunc("POST /api/v1/sources/{id}/auth/check", s.auth(s.handleAuthCheck))
	s.mux.HandleFunc("POST /api/v1/sources/{id}/refresh", s.auth(s.handleRefreshSource))
	s.mux.HandleFunc("POST /api/v1/sources/refresh-all", s.auth(s.handleRefreshAll))

	s.mux.HandleFunc("GET /api/v1/installations", s.auth(s.handleInstallations))
	s.mux.HandleFunc("GET /api/v1/hooks/installations", s.auth(s.handleInstallations))

	s.mux.HandleFunc("POST /api/v1/install/apply", s.auth(s.handleApply))
	s.mux.HandleFunc("POST /api/v1/uninstall/apply", s.auth(s.handleApply))
	s.mux.HandleFunc("POST /api/v1/sync/apply", s.auth(s.handleApply))
	s.mux.HandleFunc("POST /api/v1/hooks/install/apply", s.auth(s.handleApply))
	s.mux.HandleFunc("POST /api/v1/hooks/uninstall/apply", s.auth(s.handleApply))
	s.mux.HandleFunc("POST /api/v1/hooks/sync/apply", s.auth(s.handleApply))

	s.mux.HandleFunc("POST /api/v1/ws/session", s.auth(s.handleWsSession))
	s.mux.HandleFunc("GET /api/v1/events", s.loopbackOnly(s.handleEvents))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the daemon until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.Settings.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wraps a handler with the loopback check and the pre-shared key.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return s.loopbackOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(authHeader) != s.app.Settings.SharedSecret {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing or invalid "+authHeader)
			return
		}
		next(w, r)
	})
}

// loopbackOnly refuses callers that are not on this machine. The daemon
// binds to loopback anyway; this guards against permissive rebinds.
func (s *Server) loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			writeErrorCode(w, http.StatusForbidden, "forbidden", "loopback callers only")
			return
		}
		next(w, r)
	}
}
