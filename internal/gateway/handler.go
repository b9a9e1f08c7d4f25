package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rangecrew/matchlive/internal/identity"
)

// SessionPrincipalFunc extracts the cookie-session principal's email
// from an upgrade request. Implemented by the hosting deployment's
// session layer; an error means no session.
type SessionPrincipalFunc func(r *http.Request) (string, error)

// Handler upgrades HTTP requests into gateway connections.
type Handler struct {
	gw            *Gateway
	upgrader      websocket.Upgrader
	jwtSecret     []byte
	sessionLookup SessionPrincipalFunc
}

// NewHandler wires the upgrade endpoint. sessionLookup may be nil when
// the deployment is token-only.
func NewHandler(gw *Gateway, jwtSecret []byte, sessionLookup SessionPrincipalFunc) *Handler {
	return &Handler{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  gw.connCfg.ReadBufferSize,
			WriteBufferSize: gw.connCfg.WriteBufferSize,
			CheckOrigin:     gw.connCfg.CheckOrigin,
		},
		jwtSecret:     jwtSecret,
		sessionLookup: sessionLookup,
	}
}

// ServeHTTP upgrades the connection, captures whatever credentials the
// request carried and starts the pumps. Credential failures are never
// fatal; an unidentified viewer still spectates.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds := h.credentials(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.gw.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(h.gw, ws, creds)
	h.gw.connect(r.Context(), c)
	go c.writePump()
	go c.readPump()
}

func (h *Handler) credentials(r *http.Request) identity.Credentials {
	var creds identity.Credentials

	if token := bearerToken(r); token != "" {
		claims, err := identity.ParseBearerClaims(token, h.jwtSecret)
		if err != nil {
			h.gw.log.Debug().Err(err).Msg("bearer token did not verify")
		} else {
			creds.Claims = claims
		}
	}

	if h.sessionLookup != nil {
		email, err := h.sessionLookup(r)
		if err != nil {
			h.gw.log.Debug().Err(err).Msg("no session principal")
		} else {
			creds.SessionEmail = email
		}
	}
	return creds
}

// bearerToken pulls the token from the Authorization header, or from
// the access_token query parameter for browser WebSocket clients that
// cannot set headers.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// RegisterRoutes mounts the WebSocket and ops endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/ws/match", h)
	mux.HandleFunc("/ws/stats", h.handleStats)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.gw.Stats())
}
