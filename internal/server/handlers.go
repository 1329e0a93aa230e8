package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agenthub-dev/agenthub/internal/engine"
	"github.com/agenthub-dev/agenthub/internal/source"
	"github.com/agenthub-dev/agenthub/internal/target"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	var kind source.Kind
	switch r.PathValue("kind") {
	case "skills":
		kind = source.KindSkill
	case "hooks":
		kind = source.KindHook
	default:
		writeErrorCode(w, http.StatusNotFound, "not-found", "unknown catalog kind")
		return
	}

	force := r.URL.Query().Get("refresh") == "true"
	cat, err := s.app.Builder.Build(r.Context(), kind, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleInstallations(w http.ResponseWriter, r *http.Request) {
	kind := kindFromPath(r.URL.Path)

	q := r.URL.Query()
	scope := target.Scope(q.Get("scope"))
	if scope == "" {
		scope = target.ScopeUser
	}
	var targets []string
	if t := q.Get("targets"); t != "" {
		targets = strings.Split(t, ",")
	}

	installations, err := s.app.Engine.Installations(r.Context(), targets, kind, scope, q.Get("projectPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"installations": installations})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	op := opFromPath(r.URL.Path)

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}
	req.Kind = kindFromPath(r.URL.Path)
	if req.Scope == "" {
		req.Scope = target.ScopeUser
	}

	report, err := s.app.Engine.Apply(r.Context(), op, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func kindFromPath(path string) source.Kind {
	if strings.Contains(path, "/hooks/") {
		return source.KindHook
	}
	return source.KindSkill
}

func opFromPath(path string) engine.Operation {
	switch {
	case strings.Contains(path, "/uninstall/"):
		return engine.OpUninstall
	case strings.Contains(path, "/sync/"):
		return engine.OpSync
	default:
		return engine.OpInstall
	}
}
