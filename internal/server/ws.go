package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type wsSessionResponse struct {
	URL             string `json:"url"`
	SessionID       string `json:"sessionId"`
	ExpiresAt       string `json:"expiresAt"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// handleWsSession mints a single-use ticket so the websocket handshake,
// which cannot carry the shared-key header from a browser, can still
// prove recent authorization.
func (s *Server) handleWsSession(w http.ResponseWriter, r *http.Request) {
	var req wsSessionRequest
	// An empty body is fine; a session id is generated.
	json.NewDecoder(r.Body).Decode(&req)
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ticket := s.app.Tickets.Create(req.SessionID)

	u := url.URL{
		Scheme: "ws",
		Host:   s.app.Settings.ListenAddr,
		Path:   "/api/v1/events",
	}
	q := u.Query()
	q.Set("ticket", ticket.ID)
	q.Set("session", req.SessionID)
	u.RawQuery = q.Encode()

	writeJSON(w, http.StatusOK, wsSessionResponse{
		URL:             u.String(),
		SessionID:       req.SessionID,
		ExpiresAt:       ticket.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		ProtocolVersion: ProtocolVersion,
	})
}

// handleEvents upgrades to a websocket and streams bus events. The
// ticket is consumed before the upgrade, whatever the outcome.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, reason := s.app.Tickets.Consume(q.Get("ticket"), q.Get("session"))
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "ticket-"+reason, "websocket ticket rejected: "+reason)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.originAllowed,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.app.Bus.Attach()
	defer s.app.Bus.Detach(sub)

	// Reader goroutine only watches for the peer closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// originAllowed accepts non-browser clients (no Origin header) and any
// configured browser origin, port ignored.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.app.Settings.AllowedOrigins {
		au, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if u.Scheme == au.Scheme && u.Hostname() == au.Hostname() {
			return true
		}
	}
	return false
}
