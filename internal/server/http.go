package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quizboard/internal/config"
	"quizboard/internal/logging"
)

// WSUpgrader handles WebSocket upgrades. The board binds to loopback by
// default, so every origin is accepted.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handlers carries the route handlers the session layer exposes. Any of them
// may be nil during partial bootstrap.
type Handlers struct {
	BoardWS            http.HandlerFunc
	Snapshot           http.HandlerFunc
	UploadIntro        http.HandlerFunc
	UploadCorrectSound http.HandlerFunc
}

// NewHTTPServer wires base routes (health, metrics) plus the board endpoints.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	if h.BoardWS != nil {
		mux.HandleFunc("/ws/board", h.BoardWS)
	} else {
		mux.HandleFunc("/ws/board", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "WebSocket handler not yet integrated", http.StatusNotImplemented)
		})
	}

	if h.Snapshot != nil {
		mux.HandleFunc("/v1/snapshot", h.Snapshot)
	}
	if h.UploadIntro != nil {
		mux.HandleFunc("/v1/problems/{id}/audio", h.UploadIntro)
	}
	if h.UploadCorrectSound != nil {
		mux.HandleFunc("/v1/correct-sound", h.UploadCorrectSound)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: withLogger(mux, logger),
	}
}

// withLogger injects the app logger into every request context, so handlers
// log through logging.FromContext instead of threading a logger around.
func withLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), logger)))
	})
}
