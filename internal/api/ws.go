package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/talgya/scorelog-viewer/internal/loader"
	"github.com/talgya/scorelog-viewer/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for outbound messages
	sendBufferSize = 16
)

// Client message types.
const (
	msgSelectSource = "select_source"
	msgSelectTag    = "select_tag"
	msgSetStacked   = "set_stacked"
)

// Server message types.
const (
	msgUpdate = "update"
	msgError  = "error"
)

type clientMessage struct {
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Stacked bool   `json:"stacked,omitempty"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsClient is one viewer connected over WebSocket. Each connection owns
// its own session controller.
type wsClient struct {
	id   string
	conn *websocket.Conn
	ctrl *session.Controller
	send chan serverMessage
	done chan struct{}
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(s.App.Config.Server.CORSOrigins))
	for _, o := range s.App.Config.Server.CORSOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		id:   middleware.GetReqID(r.Context()),
		conn: conn,
		ctrl: s.App.NewSession(),
		send: make(chan serverMessage, sendBufferSize),
		done: make(chan struct{}),
	}
	c.ctrl.OnLoading(func(u session.Update) { c.trySend(serverMessage{Type: msgUpdate, Payload: u}) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("viewer connected", "client", c.id)
	go c.writePump()

	q := r.URL.Query()
	if on, err := strconv.ParseBool(q.Get("stacked")); err == nil {
		c.ctrl.SetStacked(on)
	}
	go func() {
		u, err := c.ctrl.Open(ctx, q.Get("file"))
		if err == nil && q.Get("tag") != "" {
			u, err = c.ctrl.SelectTag(q.Get("tag"))
		}
		c.publish(u, err)
	}()

	c.readPump(ctx)
	slog.Info("viewer disconnected", "client", c.id)
}

// readPump handles client messages until the connection closes. Source
// selections run concurrently so a newer one can supersede a slow load.
func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket unexpected close", "client", c.id, "error", err)
			}
			return
		}

		switch msg.Type {
		case msgSelectSource:
			source := msg.Source
			go func() { c.publish(c.ctrl.SelectSource(ctx, source)) }()
		case msgSelectTag:
			c.publish(c.ctrl.SelectTag(msg.Tag))
		case msgSetStacked:
			c.publish(c.ctrl.SetStacked(msg.Stacked), nil)
		default:
			c.trySend(serverMessage{Type: msgError, Payload: "unknown message type " + msg.Type})
		}
	}
}

// writePump sends queued messages and keeps the connection alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("websocket encode failed", "client", c.id, "type", msg.Type, "error", err)
				data, _ = json.Marshal(serverMessage{Type: msgError, Payload: "update could not be encoded"})
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Warn("websocket write failed", "client", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// publish turns a controller result into an outbound message. Stale
// results are dropped; a failed load is still an update since it carries
// the reset display and the failure status.
func (c *wsClient) publish(u session.Update, err error) {
	var le *loader.LoadError
	switch {
	case err == nil, errors.As(err, &le):
		c.trySend(serverMessage{Type: msgUpdate, Payload: u})
	case errors.Is(err, session.ErrStale), errors.Is(err, context.Canceled):
		slog.Debug("dropping superseded selection", "client", c.id, "generation", u.Generation)
	default:
		c.trySend(serverMessage{Type: msgError, Payload: err.Error()})
	}
}

// trySend queues msg without blocking. Messages to a slow or closed
// client are dropped.
func (c *wsClient) trySend(msg serverMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		slog.Warn("websocket send buffer full", "client", c.id)
		return false
	}
}
