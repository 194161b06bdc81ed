package handle

import (
	"encoding/json"
	"net/http"

	"dishpatch/internal/coordinator"
	"dishpatch/internal/domain"
	"dishpatch/pkg/logger"
)

type KitchenHandler struct {
	service *coordinator.Service
	logger  *logger.Logger
}

func NewKitchenHandler(service *coordinator.Service, log *logger.Logger) *KitchenHandler {
	return &KitchenHandler{service: service, logger: log}
}

// Tickets lists live tickets for the display board. Repeated ?status=
// parameters filter; none means every live status.
func (h *KitchenHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.TicketStatus
	for _, s := range r.URL.Query()["status"] {
		statuses = append(statuses, domain.TicketStatus(s))
	}
	if len(statuses) == 0 {
		statuses = domain.TicketLiveStatuses
	}

	tickets, err := h.service.ListTicketsByStatus(r.Context(), statuses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

type bulkTicketStatusRequest struct {
	TicketIDs []int64             `json:"ticket_ids"`
	Status    domain.TicketStatus `json:"status"`
	Actor     string              `json:"actor"`
}

func (h *KitchenHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)

	var req bulkTicketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	outcomes, err := h.service.UpdateTicketStatusBulk(r.Context(), reqID, req.TicketIDs, req.Status, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

type cancelTicketRequest struct {
	Quantity int    `json:"quantity"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason"`
}

func (h *KitchenHandler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	ticketID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket id"})
		return
	}

	var req cancelTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	ticket, err := h.service.CancelFromKitchen(r.Context(), reqID, ticketID, req.Quantity, req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

type voidByMenuRequest struct {
	MenuItemID int64  `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Actor      string `json:"actor"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
}

func (h *KitchenHandler) VoidByMenu(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req voidByMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	result, err := h.service.VoidTicketsByMenu(r.Context(), reqID, orderID, req.MenuItemID, req.Quantity, req.Actor, req.Source, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type voidAllRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (h *KitchenHandler) VoidAll(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req voidAllRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	cancelled, err := h.service.VoidAllByOrder(r.Context(), reqID, orderID, req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}
