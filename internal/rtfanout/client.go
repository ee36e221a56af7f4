package rtfanout

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Application-level heartbeat on the readers-list namespace,
	// independent of the websocket protocol's own ping/pong.
	appPingPeriod = 20 * time.Second

	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards connect cross-origin; auth happens at the
	// HTTP layer before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	id        string
	namespace string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
}

// ServeWS returns the upgrade handler for one namespace.
func (h *Hub) ServeWS(namespace string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.knownNamespace(namespace) {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Printf("fanout: upgrade failed for /%s: %v", namespace, err)
			return
		}

		c := &client{
			id:        uuid.NewString(),
			namespace: namespace,
			hub:       h,
			conn:      conn,
			send:      make(chan []byte, sendBuffer),
		}
		h.register(c)

		go c.writePump()
		go c.readPump()
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Printf("fanout: client %s read error: %v", c.id, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.logger.Printf("fanout: client %s sent malformed frame, ignoring", c.id)
			continue
		}

		switch c.namespace {
		case NamespaceController:
			// Upstream telemetry from hardware controllers.
			c.hub.dispatchController(env)
		case NamespaceReadersList:
			// Application-level pong answers our heartbeat; anything
			// else from a registry viewer is noise.
			if env.Event == "pong" {
				_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	var appPing <-chan time.Time
	if c.namespace == NamespaceReadersList {
		appTicker := time.NewTicker(appPingPeriod)
		defer appTicker.Stop()
		appPing = appTicker.C
	}

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-appPing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, heartbeatFrame()); err != nil {
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
