// Package ws exposes leaderboard subscription streams over WebSocket.
// One connection serves either a single leaderboard or a tournament
// aggregate; the engine's broker does the filtering and throttling, the
// socket just frames what the stream delivers.
package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

const (
	// writeWait bounds one frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a silent peer stays connected.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer absorbs bursts between broker ticks.
	sendBuffer = 32
)

// frame is the wire form of one outbound message.
type frame struct {
	Type    string                      `json:"type"`
	Update  *leaderboard.Update         `json:"update,omitempty"`
	Updates []leaderboard.Update        `json:"updates,omitempty"`
	Deltas  []leaderboard.PositionDelta `json:"deltas,omitempty"`
}

// client is one connected subscriber.
type client struct {
	conn   *websocket.Conn
	send   chan frame
	cancel func()
	log    *logger.Logger
}

func newClient(conn *websocket.Conn, cancel func(), log *logger.Logger) *client {
	return &client{
		conn:   conn,
		send:   make(chan frame, sendBuffer),
		cancel: cancel,
		log:    log,
	}
}

// readPump drains inbound frames. Clients send nothing meaningful;
// the pump exists to notice closes and answer pings.
func (c *client) readPump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("subscriber read error", logger.Err(err))
			}
			return
		}
	}
}

// writePump frames stream messages and keeps the connection alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				c.log.Error("frame marshal failed", logger.Err(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue drops the frame when the client cannot keep up. The next
// broker tick carries the superseding state anyway.
func (c *client) enqueue(f frame) {
	select {
	case c.send <- f:
	default:
	}
}
