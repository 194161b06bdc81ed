// Package http exposes the coordinator over a JSON HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dishpatch/internal/api/http/handle"
	"dishpatch/internal/coordinator"
	"dishpatch/pkg/logger"
)

type Server struct {
	port       int
	service    *coordinator.Service
	logger     *logger.Logger
	httpServer *http.Server
}

func NewServer(port int, service *coordinator.Service, log *logger.Logger) *Server {
	return &Server{port: port, service: service, logger: log}
}

func (s *Server) Start() error {
	orders := handle.NewOrderHandler(s.service, s.logger)
	kitchen := handle.NewKitchenHandler(s.service, s.logger)
	inventory := handle.NewInventoryHandler(s.service, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", orders.Create)
	mux.HandleFunc("GET /orders/{id}", orders.Get)
	mux.HandleFunc("GET /orders/{id}/history", orders.History)
	mux.HandleFunc("POST /orders/{id}/items", orders.AddItems)
	mux.HandleFunc("PATCH /orders/{id}/items/{itemID}", orders.SetItemQuantity)
	mux.HandleFunc("DELETE /orders/{id}/items/{itemID}", orders.RemoveItem)
	mux.HandleFunc("POST /orders/{id}/items/status", orders.BulkItemStatus)
	mux.HandleFunc("PATCH /orders/{id}/status", orders.UpdateStatus)
	mux.HandleFunc("POST /orders/{id}/cancel", orders.Cancel)
	mux.HandleFunc("POST /orders/{id}/merge", orders.Merge)
	mux.HandleFunc("POST /orders/{id}/split", orders.Split)
	mux.HandleFunc("POST /orders/{id}/notify", orders.Notify)
	mux.HandleFunc("GET /orders/{id}/progress", orders.Progress)
	mux.HandleFunc("GET /orders/{id}/batches", orders.Batches)
	mux.HandleFunc("POST /orders/{id}/customer", orders.AttachCustomer)

	mux.HandleFunc("GET /kitchen/tickets", kitchen.Tickets)
	mux.HandleFunc("POST /kitchen/tickets/status", kitchen.BulkStatus)
	mux.HandleFunc("POST /kitchen/tickets/{id}/cancel", kitchen.CancelTicket)
	mux.HandleFunc("POST /kitchen/orders/{id}/void-item", kitchen.VoidByMenu)
	mux.HandleFunc("POST /kitchen/orders/{id}/void", kitchen.VoidAll)

	mux.HandleFunc("GET /inventory/{id}", inventory.Get)
	mux.HandleFunc("GET /inventory/{id}/history", inventory.History)
	mux.HandleFunc("POST /inventory/{id}/import", inventory.Import)
	mux.HandleFunc("POST /inventory/{id}/adjust", inventory.Adjust)
	mux.HandleFunc("POST /inventory/{id}/waste", inventory.Waste)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("startup", "server_started", fmt.Sprintf("Coordinator started on port %d", s.port))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
