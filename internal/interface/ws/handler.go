package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/golffinder/leaderboard-engine/internal/engine"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced upstream at the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests into subscription streams.
type Handler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewHandler creates the WebSocket handler.
func NewHandler(e *engine.Engine, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{engine: e, log: log.With(logger.Component("ws"))}
}

// ServeLeaderboard streams one leaderboard's updates.
// GET /ws/leaderboard?leaderboard_id=...
func (h *Handler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	leaderboardID := r.URL.Query().Get("leaderboard_id")
	if leaderboardID == "" {
		http.Error(w, "leaderboard_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", logger.Err(err))
		return
	}

	stream, cancel := h.engine.Subscribe(leaderboardID)
	c := newClient(conn, cancel, h.log)

	h.log.Debug("subscriber connected", logger.LeaderboardID(leaderboardID))

	// Recent movement first, so a reconnecting client can render
	// position-change arrows without waiting for the next update.
	if deltas := h.engine.RecentDeltas(leaderboardID); len(deltas) > 0 {
		c.enqueue(frame{Type: "deltas", Deltas: deltas})
	}

	go c.writePump()
	go func() {
		defer close(c.send)
		for u := range stream {
			u := u
			c.enqueue(frame{Type: "update", Update: &u})
		}
	}()
	go c.readPump()
}

// ServeTournament streams a batched aggregate over all of a
// tournament's leaderboards.
// GET /ws/tournament?tournament_id=...
func (h *Handler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID := r.URL.Query().Get("tournament_id")
	if tournamentID == "" {
		http.Error(w, "tournament_id is required", http.StatusBadRequest)
		return
	}

	stream, cancel, err := h.engine.SubscribeLiveTournament(r.Context(), tournamentID)
	if err != nil {
		h.log.Warn("tournament subscription failed",
			logger.TournamentID(tournamentID), logger.Err(err))
		http.Error(w, "tournament lookup failed", http.StatusBadGateway)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		h.log.Warn("upgrade failed", logger.Err(err))
		return
	}

	c := newClient(conn, cancel, h.log)

	h.log.Debug("tournament subscriber connected", logger.TournamentID(tournamentID))

	go c.writePump()
	go func() {
		defer close(c.send)
		for batch := range stream {
			c.enqueue(frame{Type: "batch", Updates: batch})
		}
	}()
	go c.readPump()
}
