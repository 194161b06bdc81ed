package handle

import (
	"encoding/json"
	"net/http"

	"dishpatch/internal/coordinator"
	"dishpatch/pkg/logger"
)

type InventoryHandler struct {
	service *coordinator.Service
	logger  *logger.Logger
}

func NewInventoryHandler(service *coordinator.Service, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{service: service, logger: log}
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	item, err := h.service.GetInventoryItem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}
	txs, err := h.service.GetInventoryHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

type importRequest struct {
	Quantity float64 `json:"quantity"`
	RefID    int64   `json:"ref_id"`
	Note     string  `json:"note"`
}

func (h *InventoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	item, err := h.service.ImportStock(r.Context(), reqID, id, req.Quantity, req.RefID, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type adjustRequest struct {
	Delta float64 `json:"delta"`
	Note  string  `json:"note"`
}

func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	item, err := h.service.AdjustStock(r.Context(), reqID, id, req.Delta, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type wasteRequest struct {
	Quantity float64 `json:"quantity"`
	Note     string  `json:"note"`
}

func (h *InventoryHandler) Waste(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req wasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	item, err := h.service.RecordWaste(r.Context(), reqID, id, req.Quantity, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
