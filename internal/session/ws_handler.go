package session

import (
	"net/http"

	"quizboard/internal/server"
)

// HandleWebSocket upgrades the HTTP connection and hands it to the hub. The
// board is a trusted local tool; there is no per-client auth.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn)
}
