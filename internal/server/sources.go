package server

import (
	"encoding/json"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/agenthub-dev/agenthub/internal/source"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.app.Registry.Views()})
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	view, err := s.app.Registry.ViewOf(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRegisterSource(w http.ResponseWriter, r *http.Request) {
	var spec source.RegisterSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	src, err := s.app.Registry.Register(spec)
	if err != nil {
		writeError(w, err)
		return
	}

	// Fail fast on a bad credential or unreachable repo rather than at
	// the first catalog build. Registration stands either way.
	check := s.app.Syncer.AuthCheck(r.Context(), src)

	view, err := s.app.Registry.ViewOf(src.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"source":    view,
		"authCheck": check,
	})
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var spec source.UpdateSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	src, err := s.app.Registry.Update(r.PathValue("id"), spec)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{}
	if spec.Token != nil && *spec.Token != "" {
		resp["authCheck"] = s.app.Syncer.AuthCheck(r.Context(), src)
	}
	view, err := s.app.Registry.ViewOf(src.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp["source"] = view
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.app.Registry.ViewOf(id)
	if err != nil {
		writeError(w, err)
		return
	}

	src, err := s.app.Registry.Remove(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.app.Syncer.RemoveWorkingCopy(src); err != nil {
		s.log.Warn().Str("source", id).Err(err).Msg("working copy cleanup failed")
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": view})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	src, err := s.app.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Syncer.AuthCheck(r.Context(), src))
}

func (s *Server) handleRefreshSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.app.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.app.Syncer.Sync(r.Context(), src)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refreshOutcome struct {
	SourceID string `json:"sourceId"`
	OK       bool   `json:"ok"`
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	srcs := s.app.Registry.List()

	outcomes := make([]refreshOutcome, len(srcs))
	var g errgroup.Group
	for i, src := range srcs {
		if !src.Enabled() {
			outcomes[i] = refreshOutcome{SourceID: src.ID, OK: false, Error: "disabled"}
			continue
		}
		g.Go(func() error {
			res, err := s.app.Syncer.Sync(r.Context(), src)
			if err != nil {
				// Already redacted by the sync layer.
				outcomes[i] = refreshOutcome{SourceID: src.ID, Error: err.Error()}
				return nil
			}
			outcomes[i] = refreshOutcome{SourceID: src.ID, OK: true, Revision: res.Revision}
			return nil
		})
	}
	g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"results": outcomes})
}
