package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"rtc-game/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type handler struct {
	hub    *Hub
	api    *webrtc.API
	config webrtc.Configuration
}

func (h *handler) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("Failed to upgrade connection to websocket")
		return
	}

	peer, err := newPeer(h.hub, conn, h.api, h.config)
	if err != nil {
		log.WithError(err).Error("Failed to set up peer")
		conn.Close()
		return
	}

	go peer.receiveMessage()
	go peer.sendMessage()

	if err := peer.offer(); err != nil {
		log.WithError(err).WithField("player", peer.id).Error("Failed to offer")
		peer.Close()
	}
}

func (h *handler) playerListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.hub.Players())
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// NewHandler serves the relay's endpoints.
func NewHandler(hub *Hub, api *webrtc.API, config webrtc.Configuration) http.Handler {
	h := &handler{hub: hub, api: api, config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("/players", h.playerListHandler)
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/", h.websocketHandler)
	return mux
}

// Start serves until ctx is done.
func Start(ctx context.Context, conf config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + conf.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("Relay listening on ", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
