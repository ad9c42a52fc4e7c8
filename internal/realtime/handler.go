package realtime

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberline/hubd/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The hub and its terminals share one LAN; there is no cross-origin
	// browser client to protect against.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades `/ws` connections, resolves the connecting peer's role
// from the terminals table, and keeps the connection registered in Hub
// until it closes.
type Handler struct {
	hub    *Hub
	store  *store.Store
	logger *slog.Logger
}

// NewHandler creates a websocket upgrade handler backed by hub.
func NewHandler(hub *Hub, s *store.Store, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, store: s, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	terminalID := r.URL.Query().Get("terminalId")
	role := h.resolveRole(r.Context(), terminalID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime: upgrade failed", "error", err)
		return
	}

	clientID := store.NewID()
	h.hub.Register(clientID, terminalID, role, conn)
	h.logger.Info("realtime: peer connected", "clientId", clientID, "terminalId", terminalID, "role", role)

	h.readLoop(clientID, conn)
}

// readLoop blocks discarding inbound frames (the protocol is server→client
// only) until the connection errors or closes, then unregisters the peer.
// gorilla/websocket requires a goroutine to keep draining reads even on a
// write-only connection, or pong control frames are never processed and the
// peer is dropped as unresponsive.
func (h *Handler) readLoop(clientID string, conn *websocket.Conn) {
	defer h.hub.Unregister(clientID)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("realtime: peer disconnected", "clientId", clientID, "error", err)
			return
		}
	}
}

// resolveRole looks up the terminal's registered role, defaulting to
// RolePOS for an unknown or absent terminal id — a display that does not
// identify itself is treated as a plain register, never as kitchen/admin.
func (h *Handler) resolveRole(ctx context.Context, terminalID string) Role {
	if terminalID == "" {
		return RolePOS
	}

	var role string
	err := h.store.DB().QueryRowContext(ctx, `SELECT role FROM terminals WHERE id = ?`, terminalID).Scan(&role)
	if err == sql.ErrNoRows || err != nil {
		return RolePOS
	}

	switch Role(role) {
	case RoleKDS:
		return RoleKDS
	case RoleAdmin:
		return RoleAdmin
	default:
		return RolePOS
	}
}
