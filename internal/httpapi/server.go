package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/service"
	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

// BrokerStatus reports broker connectivity for the health endpoint.
type BrokerStatus interface {
	IsConnected() bool
}

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	APIKey    string // operator endpoints, X-Api-Key
	BridgeKey string // machine-to-machine endpoints, X-Bridge-Key

	Enroll  *service.EnrollService
	Tags    *service.TagService
	Access  *service.AccessService
	Readers store.ReaderStore
	Events  store.AccessEventStore
	Gateway *service.CommandGateway
	Hub     *rtfanout.Hub
	Broker  BrokerStatus
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger

	enroll  *service.EnrollService
	tags    *service.TagService
	access  *service.AccessService
	readers store.ReaderStore
	events  store.AccessEventStore
	gateway *service.CommandGateway
	hub     *rtfanout.Hub
	broker  BrokerStatus
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:  d.Logger,
		enroll:  d.Enroll,
		tags:    d.Tags,
		access:  d.Access,
		readers: d.Readers,
		events:  d.Events,
		gateway: d.Gateway,
		hub:     d.Hub,
		broker:  d.Broker,
	}

	operator := func(h http.HandlerFunc) http.HandlerFunc { return requireKey("X-Api-Key", d.APIKey, h) }
	machine := func(h http.HandlerFunc) http.HandlerFunc { return requireKey("X-Bridge-Key", d.BridgeKey, h) }

	mux.HandleFunc("POST /v1/tags/enroll", operator(s.handleEnroll))
	mux.HandleFunc("POST /v1/tags/enroll/cancel", operator(s.handleEnrollCancel))
	mux.HandleFunc("POST /v1/tags/rfid/save", machine(s.handleSaveTag))
	mux.HandleFunc("GET /v1/tags", operator(s.handleListTags))
	mux.HandleFunc("DELETE /v1/tags/{tagId}", operator(s.handleDeleteTag))
	mux.HandleFunc("PUT /v1/tags/{tagId}/secret",
		requireAnyKey(d.APIKey, d.BridgeKey, s.handleUpdateSecret))

	mux.HandleFunc("GET /v1/access/check/{uid}", s.handleCheckAccess)
	mux.HandleFunc("GET /v1/access/events", operator(s.handleListEvents))

	mux.HandleFunc("GET /v1/readers", operator(s.handleListReaders))
	mux.HandleFunc("POST /v1/readers", operator(s.handleAddReader))
	mux.HandleFunc("PUT /v1/readers/{id}", operator(s.handleRenameReader))
	mux.HandleFunc("DELETE /v1/readers/{id}", operator(s.handleDeleteReader))

	mux.HandleFunc("POST /v1/controller/trigger-scan", operator(s.handleTriggerScan))
	mux.HandleFunc("GET /v1/fanout/status", operator(s.handleFanoutStatus))
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)

	// Real-time channels. Dashboards subscribe unauthenticated (same
	// posture as the list endpoints they mirror); the controller
	// channel is hardware-only.
	mux.HandleFunc("GET /ws/events", d.Hub.ServeWS(rtfanout.NamespaceEvents))
	mux.HandleFunc("GET /ws/access-logs", d.Hub.ServeWS(rtfanout.NamespaceAccessLogs))
	mux.HandleFunc("GET /ws/employees-status", d.Hub.ServeWS(rtfanout.NamespaceEmployeesStatus))
	mux.HandleFunc("GET /ws/readers-list", d.Hub.ServeWS(rtfanout.NamespaceReadersList))
	mux.HandleFunc("GET /ws/controller", machine(d.Hub.ServeWS(rtfanout.NamespaceController)))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
