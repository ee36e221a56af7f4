// Package rtfanout multiplexes the server's real-time broadcast
// channels over websocket connections. Each namespace is an independent
// subscriber set: dashboards watch access-logs or employees-status,
// registry views watch readers-list, and hardware controllers attach to
// the bidirectional controller namespace.
//
// Delivery is best-effort, at-most-once. A subscriber that falls behind
// or disconnects is dropped and must resynchronize through the list
// endpoints.
package rtfanout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/types"
)

const (
	NamespaceEvents          = "events"
	NamespaceAccessLogs      = "access-logs"
	NamespaceEmployeesStatus = "employees-status"
	NamespaceReadersList     = "readers-list"
	NamespaceController      = "controller"
)

// ErrNoControllers is returned when a command cannot be sent because no
// controller holds an open websocket connection.
var ErrNoControllers = errors.New("no controller connected via websocket")

// Envelope is the wire frame for every fan-out message, inbound and
// outbound.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ControllerHandler receives telemetry sent upstream by controllers on
// the controller namespace.
type ControllerHandler func(event string, data json.RawMessage)

type Hub struct {
	logger *log.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // namespace -> connections

	handlerMu sync.RWMutex
	onCtrl    ControllerHandler
}

func NewHub(logger *log.Logger) *Hub {
	clients := make(map[string]map[*client]struct{})
	for _, ns := range []string{
		NamespaceEvents,
		NamespaceAccessLogs,
		NamespaceEmployeesStatus,
		NamespaceReadersList,
		NamespaceController,
	} {
		clients[ns] = make(map[*client]struct{})
	}
	return &Hub{logger: logger, clients: clients}
}

// SetControllerHandler wires the upstream telemetry sink. Must be called
// before controllers connect.
func (h *Hub) SetControllerHandler(fn ControllerHandler) {
	h.handlerMu.Lock()
	h.onCtrl = fn
	h.handlerMu.Unlock()
}

func (h *Hub) knownNamespace(ns string) bool {
	_, ok := h.clients[ns]
	return ok
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.namespace][c] = struct{}{}
	n := len(h.clients[c.namespace])
	h.mu.Unlock()
	h.logger.Printf("fanout: client %s joined /%s (%d connected)", c.id, c.namespace, n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.namespace][c]; ok {
		delete(h.clients[c.namespace], c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Printf("fanout: client %s left /%s", c.id, c.namespace)
}

// Broadcast pushes one event to every subscriber of the namespace.
// Slow clients are disconnected rather than blocking the caller.
func (h *Hub) Broadcast(namespace, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("fanout: marshal %s payload: %v", event, err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Printf("fanout: marshal %s envelope: %v", event, err)
		return
	}

	var stale []*client
	h.mu.RLock()
	for c := range h.clients[namespace] {
		select {
		case c.send <- frame:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Printf("fanout: dropping slow client %s on /%s", c.id, namespace)
		h.unregister(c)
		_ = c.conn.Close()
	}
}

// SendCommand delivers a controller command over the websocket channel.
// It satisfies the gateway's preferred transport; with no controllers
// connected it fails so the gateway can fall back to the broker.
func (h *Hub) SendCommand(_ context.Context, cmd types.ControllerCommand) error {
	h.mu.RLock()
	n := len(h.clients[NamespaceController])
	h.mu.RUnlock()
	if n == 0 {
		return ErrNoControllers
	}
	h.Broadcast(NamespaceController, "command", cmd)
	return nil
}

func (h *Hub) Name() string { return "websocket" }

// Counts reports connected clients per namespace.
func (h *Hub) Counts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.clients))
	for ns, set := range h.clients {
		out[ns] = len(set)
	}
	return out
}

func (h *Hub) dispatchController(env Envelope) {
	h.handlerMu.RLock()
	fn := h.onCtrl
	h.handlerMu.RUnlock()
	if fn != nil {
		fn(env.Event, env.Data)
	}
}

// heartbeatPayload is the application-level ping sent on the
// readers-list namespace.
type heartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func heartbeatFrame() []byte {
	data, _ := json.Marshal(heartbeatPayload{Timestamp: time.Now().UnixMilli()})
	frame, _ := json.Marshal(Envelope{Event: "ping", Data: data})
	return frame
}
