// Package coordinator is the transactional boundary of the order and
// kitchen fulfillment flow. Every operation runs inside one store
// transaction; fan-out events are collected during the transaction and
// published only after it commits.
package coordinator

import (
	"context"
	"fmt"

	"dishpatch/internal/domain"
	"dishpatch/internal/fanout"
	"dishpatch/internal/ledger"
	"dishpatch/internal/recipe"
	"dishpatch/internal/store"
	"dishpatch/pkg/logger"
)

type Service struct {
	store     store.Store
	fan       *fanout.Fanout
	logger    *logger.Logger
	invoices  InvoiceService
	customers CustomerService
}

func NewService(st store.Store, pub fanout.Publisher, log *logger.Logger) *Service {
	return &Service{
		store:  st,
		fan:    fanout.New(pub, log),
		logger: log,
	}
}

// WithInvoices wires the invoice collaborator: SERVED creates the
// invoice, PAID marks it paid, CANCELLED cancels it. Optional; without
// it those transitions skip invoice bookkeeping.
func (s *Service) WithInvoices(inv InvoiceService) *Service {
	s.invoices = inv
	return s
}

func (s *Service) WithCustomers(c CustomerService) *Service {
	s.customers = c
	return s
}

// pendingEvent is an event staged inside a transaction, published only
// after commit.
type pendingEvent struct {
	groups []string
	ev     fanout.Event
}

func (s *Service) emit(requestID string, events []pendingEvent) {
	for _, p := range events {
		s.fan.Emit(requestID, p.groups, p.ev)
	}
}

func orderChanged(orderID int64, reason string, payload any) pendingEvent {
	return pendingEvent{
		groups: fanout.AllGroups,
		ev: fanout.Event{
			Type:    fanout.EventOrderChanged,
			Reason:  reason,
			OrderID: orderID,
			Payload: payload,
		},
	}
}

func lowStockEvents(items []domain.InventoryItem) []pendingEvent {
	var out []pendingEvent
	for _, it := range items {
		out = append(out, pendingEvent{
			groups: []string{fanout.GroupCashier},
			ev:     fanout.Event{Type: fanout.EventLowStock, Payload: it},
		})
	}
	return out
}

// ItemRequest is one line of a create/add call.
type ItemRequest struct {
	MenuItemID int64  `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Note       string `json:"note,omitempty"`
}

// CreateOrder opens an order on a table, snapshots menu prices into
// line items and debits the full recipe requirement in one transaction.
func (s *Service) CreateOrder(ctx context.Context, requestID string, tableID int64, items []ItemRequest, actor string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order requires at least one item", domain.ErrBadQuantity)
	}

	var (
		order  *domain.Order
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTable(ctx, tableID); err != nil {
			return err
		}

		o := &domain.Order{
			TableID:   tableID,
			CreatedBy: actor,
			Status:    domain.OrderPending,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		pairs := make([]recipe.ItemQty, 0, len(items))
		for _, req := range items {
			if req.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrBadQuantity, req.Quantity)
			}
			menu, err := tx.GetMenuItem(ctx, req.MenuItemID)
			if err != nil {
				return err
			}
			it := domain.OrderItem{
				OrderID:    o.ID,
				MenuItemID: menu.ID,
				Name:       menu.Name,
				Quantity:   req.Quantity,
				Price:      menu.Price,
				Note:       req.Note,
				Status:     domain.ItemPending,
			}
			if err := tx.InsertOrderItem(ctx, &it); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
			o.Items = append(o.Items, it)
			pairs = append(pairs, recipe.ItemQty{MenuItemID: menu.ID, Qty: req.Quantity})
		}

		need, err := recipe.Resolve(ctx, tx, pairs)
		if err != nil {
			return err
		}
		lowStock, err := ledger.Consume(ctx, tx, need, ledger.Ref{Type: domain.RefOrder, ID: o.ID})
		if err != nil {
			return err
		}

		if err := tx.SetTableOccupied(ctx, tableID, true); err != nil {
			return err
		}
		if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
			OrderID: o.ID, Status: string(domain.OrderPending), ChangedBy: actor, Note: "order created",
		}); err != nil {
			return err
		}

		order = o
		events = append(events, orderChanged(o.ID, fanout.ReasonCreated, o))
		events = append(events, lowStockEvents(lowStock)...)
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, "order_creation_failed", "Failed to create order", err)
		return nil, err
	}

	s.logger.Info(requestID, "order_created", fmt.Sprintf("Order %d created on table %d", order.ID, tableID))
	s.emit(requestID, events)
	return order, nil
}

// GetOrder returns the order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	return order, err
}

// GetOrderHistory returns the append-only status log of the order.
func (s *Service) GetOrderHistory(ctx context.Context, orderID int64) ([]domain.StatusLog, error) {
	var logs []domain.StatusLog
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		logs, err = tx.ListStatusLog(ctx, orderID)
		return err
	})
	return logs, err
}

// deriveOrderStatus recomputes the order status from its items and, on
// change, persists it with a history record. Terminal statuses stick.
// Returns the staged events the caller must publish after commit.
func deriveOrderStatus(ctx context.Context, tx store.Tx, order *domain.Order, actor string) ([]pendingEvent, error) {
	if order.Status.Terminal() {
		return nil, nil
	}
	items, err := tx.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	derived := domain.DeriveOrderStatus(items)
	if derived == order.Status {
		return nil, nil
	}

	if err := tx.SetOrderStatus(ctx, order.ID, derived); err != nil {
		return nil, err
	}
	if err := tx.AppendStatusLog(ctx, &domain.StatusLog{
		OrderID: order.ID, Status: string(derived), ChangedBy: actor, Note: "derived from item statuses",
	}); err != nil {
		return nil, err
	}
	order.Status = derived

	events := []pendingEvent{orderChanged(order.ID, fanout.ReasonOrderStatus, map[string]any{"status": derived})}
	if derived == domain.OrderCancelled {
		events = []pendingEvent{orderChanged(order.ID, fanout.ReasonOrderCancelled, map[string]any{"status": derived})}
	}
	return events, nil
}
