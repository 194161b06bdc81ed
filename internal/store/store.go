package store

import (
	"context"

	"dishpatch/internal/domain"
)

// Store is the transactional boundary of the coordinator. Every mutation
// runs inside WithinTx; fn's error rolls the whole unit of work back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// Tx exposes the entity operations available inside one transaction.
// ForUpdate variants take pessimistic row locks and must be called
// before any read whose result feeds a mutation (merge, split, cancel).
type Tx interface {
	// Orders.
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error

	// Order items.
	InsertOrderItem(ctx context.Context, it *domain.OrderItem) error
	GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	LockOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	SetOrderItemQuantity(ctx context.Context, id int64, qty int) error
	SetOrderItemStatus(ctx context.Context, id int64, status domain.ItemStatus) error
	CancelOrderItem(ctx context.Context, id int64, by, note string) error
	ReassignOrderItem(ctx context.Context, id, toOrderID int64) error
	DeleteOrderItem(ctx context.Context, id int64) error

	// Status history, append-only.
	AppendStatusLog(ctx context.Context, l *domain.StatusLog) error
	ListStatusLog(ctx context.Context, orderID int64) ([]domain.StatusLog, error)

	// Tables and menu.
	InsertTable(ctx context.Context, t *domain.Table) error
	GetTable(ctx context.Context, id int64) (*domain.Table, error)
	SetTableOccupied(ctx context.Context, id int64, occupied bool) error
	CountActiveOrdersByTable(ctx context.Context, tableID, excludeOrderID int64) (int, error)
	InsertMenuItem(ctx context.Context, m *domain.MenuItem) error
	GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error)

	// Recipes.
	InsertIngredient(ctx context.Context, ing *domain.Ingredient) error
	ListIngredientsByMenuItems(ctx context.Context, menuItemIDs []int64) ([]domain.Ingredient, error)

	// Inventory. Quantity writes go through the ledger only.
	InsertInventoryItem(ctx context.Context, it *domain.InventoryItem) error
	GetInventoryItem(ctx context.Context, id int64) (*domain.InventoryItem, error)
	GetInventoryItemsForUpdate(ctx context.Context, ids []int64) ([]domain.InventoryItem, error)
	SetInventoryQuantity(ctx context.Context, id int64, qty float64) error
	InsertInventoryTransaction(ctx context.Context, t *domain.InventoryTransaction) error
	ListInventoryTransactions(ctx context.Context, itemID int64) ([]domain.InventoryTransaction, error)

	// Kitchen dispatch.
	InsertBatch(ctx context.Context, b *domain.KitchenBatch) error
	ListBatchesByOrder(ctx context.Context, orderID int64) ([]domain.KitchenBatch, error)
	InsertTicket(ctx context.Context, t *domain.KitchenTicket) error
	GetTicket(ctx context.Context, id int64) (*domain.KitchenTicket, error)
	ListTicketsByBatch(ctx context.Context, batchID int64) ([]domain.KitchenTicket, error)
	ListTicketsByOrder(ctx context.Context, orderID int64, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error)
	// ListVoidableTickets returns live voidable tickets for one menu item
	// on one order, newest first.
	ListVoidableTickets(ctx context.Context, orderID, menuItemID int64) ([]domain.KitchenTicket, error)
	ListTicketsByStatus(ctx context.Context, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error)
	SetTicketQty(ctx context.Context, id int64, qty int) error
	SetTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error
	CancelTicket(ctx context.Context, id int64, by, note string) error
	DeleteTicket(ctx context.Context, id int64) error
	ReassignTickets(ctx context.Context, fromOrderID, toOrderID int64) error

	// Void audit log, append-only.
	InsertVoidEvent(ctx context.Context, v *domain.VoidEvent) error
	ListVoidEventsByOrder(ctx context.Context, orderID int64) ([]domain.VoidEvent, error)
}
