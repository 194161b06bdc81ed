package handle

import (
	"encoding/json"
	"net/http"

	"dishpatch/internal/coordinator"
	"dishpatch/internal/domain"
	"dishpatch/pkg/logger"
)

type OrderHandler struct {
	service *coordinator.Service
	logger  *logger.Logger
}

func NewOrderHandler(service *coordinator.Service, log *logger.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: log}
}

type createOrderRequest struct {
	TableID int64                     `json:"table_id"`
	Items   []coordinator.ItemRequest `json:"items"`
	Actor   string                    `json:"actor"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error(reqID, "validation_failed", "Invalid JSON payload", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	h.logger.Debug(reqID, "order_received", "New order received")
	order, err := h.service.CreateOrder(r.Context(), reqID, req.TableID, req.Items, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	logs, err := h.service.GetOrderHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type addItemsRequest struct {
	Items   []coordinator.ItemRequest `json:"items"`
	BatchID *int64                    `json:"batch_id,omitempty"`
	Actor   string                    `json:"actor"`
}

func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req addItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	order, err := h.service.AddItems(r.Context(), reqID, id, req.Items, req.BatchID, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type setQuantityRequest struct {
	Quantity int    `json:"quantity"`
	Actor    string `json:"actor"`
	Source   string `json:"source"`
}

func (h *OrderHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	order, err := h.service.SetItemQuantity(r.Context(), reqID, orderID, itemID, req.Quantity, req.Actor, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type removeItemRequest struct {
	Actor  string `json:"actor"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	var req removeItemRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	order, err := h.service.RemoveItem(r.Context(), reqID, orderID, itemID, req.Actor, req.Source, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type bulkItemStatusRequest struct {
	ItemIDs []int64           `json:"item_ids"`
	Status  domain.ItemStatus `json:"status"`
	Actor   string            `json:"actor"`
}

func (h *OrderHandler) BulkItemStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req bulkItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	outcomes, err := h.service.UpdateItemStatusBulk(r.Context(), reqID, orderID, req.ItemIDs, req.Status, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
	Actor  string             `json:"actor"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), reqID, orderID, req.Status, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type cancelOrderRequest struct {
	Actor  string `json:"actor"`
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req cancelOrderRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	order, err := h.service.CancelOrder(r.Context(), reqID, orderID, req.Actor, req.Source, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type mergeRequest struct {
	TargetOrderID int64  `json:"target_order_id"`
	Actor         string `json:"actor"`
}

func (h *OrderHandler) Merge(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	fromID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	order, err := h.service.MergeOrders(r.Context(), reqID, fromID, req.TargetOrderID, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type splitRequest struct {
	coordinator.SplitRequest
	Actor string `json:"actor"`
}

func (h *OrderHandler) Split(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	fromID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	order, err := h.service.SplitOrder(r.Context(), reqID, fromID, req.SplitRequest, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type notifyRequest struct {
	Lines    []coordinator.NotifyLine `json:"lines"`
	Staff    string                   `json:"staff"`
	Priority bool                     `json:"priority"`
	Note     string                   `json:"note"`
}

func (h *OrderHandler) Notify(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	batch, err := h.service.NotifyItems(r.Context(), reqID, orderID, req.Lines, req.Staff, req.Priority, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

func (h *OrderHandler) Progress(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	rows, err := h.service.GetOrderProgress(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *OrderHandler) Batches(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	batches, err := h.service.GetNotifyHistory(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

type attachCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *OrderHandler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req attachCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if err := h.service.AttachCustomer(r.Context(), reqID, orderID, req.CustomerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "attached"})
}
