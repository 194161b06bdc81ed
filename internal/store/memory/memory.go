// Package memory is a Store backed by process memory. Transactions run
// one at a time against a cloned snapshot that replaces the live state
// only on commit, so rollback semantics match the SQL store. Used in
// tests and for local single-node runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
)

type Memory struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	seq       int64
	orders    map[int64]domain.Order
	items     map[int64]domain.OrderItem
	logs      []domain.StatusLog
	tables    map[int64]domain.Table
	menu      map[int64]domain.MenuItem
	recipes   []domain.Ingredient
	inventory map[int64]domain.InventoryItem
	invTxns   []domain.InventoryTransaction
	batches   map[int64]domain.KitchenBatch
	tickets   map[int64]domain.KitchenTicket
	voids     []domain.VoidEvent
}

func New() *Memory {
	return &Memory{state: &state{
		orders:    map[int64]domain.Order{},
		items:     map[int64]domain.OrderItem{},
		tables:    map[int64]domain.Table{},
		menu:      map[int64]domain.MenuItem{},
		inventory: map[int64]domain.InventoryItem{},
		batches:   map[int64]domain.KitchenBatch{},
		tickets:   map[int64]domain.KitchenTicket{},
	}}
}

func (m *Memory) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	tx := &memTx{s: snapshot}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

func (m *Memory) Close() {}

func (s *state) clone() *state {
	c := &state{
		seq:       s.seq,
		orders:    make(map[int64]domain.Order, len(s.orders)),
		items:     make(map[int64]domain.OrderItem, len(s.items)),
		logs:      append([]domain.StatusLog(nil), s.logs...),
		tables:    make(map[int64]domain.Table, len(s.tables)),
		menu:      make(map[int64]domain.MenuItem, len(s.menu)),
		recipes:   append([]domain.Ingredient(nil), s.recipes...),
		inventory: make(map[int64]domain.InventoryItem, len(s.inventory)),
		invTxns:   append([]domain.InventoryTransaction(nil), s.invTxns...),
		batches:   make(map[int64]domain.KitchenBatch, len(s.batches)),
		tickets:   make(map[int64]domain.KitchenTicket, len(s.tickets)),
		voids:     append([]domain.VoidEvent(nil), s.voids...),
	}
	for k, v := range s.orders {
		v.Items = nil
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.batches {
		v.Tickets = nil
		c.batches[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

type memTx struct {
	s *state
}

func (t *memTx) next() int64 {
	t.s.seq++
	return t.s.seq
}

func stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}

// Orders.

func (t *memTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	o.ID = t.next()
	o.CreatedAt = stamp(o.CreatedAt)
	o.UpdatedAt = o.CreatedAt
	cp := *o
	cp.Items = nil
	t.s.orders[o.ID] = cp
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, id)
	}
	return &o, nil
}

// GetOrderForUpdate is identical to GetOrder here; the store-wide mutex
// already serializes writers.
func (t *memTx) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *memTx) SetOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	o, ok := t.s.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", domain.ErrOrderNotFound, id)
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	t.s.orders[id] = o
	return nil
}

// Order items.

func (t *memTx) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	it.ID = t.next()
	it.CreatedAt = stamp(it.CreatedAt)
	t.s.items[it.ID] = *it
	return nil
}

func (t *memTx) GetOrderItem(ctx context.Context, id int64) (*domain.OrderItem, error) {
	it, ok := t.s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	return &it, nil
}

func (t *memTx) ListOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	for _, it := range t.s.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) LockOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return t.ListOrderItems(ctx, orderID)
}

func (t *memTx) SetOrderItemQuantity(ctx context.Context, id int64, qty int) error {
	it, ok := t.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	it.Quantity = qty
	t.s.items[id] = it
	return nil
}

func (t *memTx) SetOrderItemStatus(ctx context.Context, id int64, status domain.ItemStatus) error {
	it, ok := t.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	it.Status = status
	t.s.items[id] = it
	return nil
}

func (t *memTx) CancelOrderItem(ctx context.Context, id int64, by, note string) error {
	it, ok := t.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	now := time.Now().UTC()
	it.Status = domain.ItemCancelled
	it.CancelledBy = &by
	it.CancelledAt = &now
	if note != "" {
		it.CancelNote = &note
	}
	t.s.items[id] = it
	return nil
}

func (t *memTx) ReassignOrderItem(ctx context.Context, id, toOrderID int64) error {
	it, ok := t.s.items[id]
	if !ok {
		return fmt.Errorf("%w: item %d", domain.ErrItemNotFound, id)
	}
	it.OrderID = toOrderID
	t.s.items[id] = it
	return nil
}

func (t *memTx) DeleteOrderItem(ctx context.Context, id int64) error {
	delete(t.s.items, id)
	return nil
}

// Status history.

func (t *memTx) AppendStatusLog(ctx context.Context, l *domain.StatusLog) error {
	l.ID = t.next()
	l.CreatedAt = stamp(l.CreatedAt)
	t.s.logs = append(t.s.logs, *l)
	return nil
}

func (t *memTx) ListStatusLog(ctx context.Context, orderID int64) ([]domain.StatusLog, error) {
	var out []domain.StatusLog
	for _, l := range t.s.logs {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Tables and menu.

func (t *memTx) InsertTable(ctx context.Context, tb *domain.Table) error {
	tb.ID = t.next()
	t.s.tables[tb.ID] = *tb
	return nil
}

func (t *memTx) GetTable(ctx context.Context, id int64) (*domain.Table, error) {
	tb, ok := t.s.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: table %d", domain.ErrTableNotFound, id)
	}
	return &tb, nil
}

func (t *memTx) SetTableOccupied(ctx context.Context, id int64, occupied bool) error {
	tb, ok := t.s.tables[id]
	if !ok {
		return fmt.Errorf("%w: table %d", domain.ErrTableNotFound, id)
	}
	tb.Occupied = occupied
	t.s.tables[id] = tb
	return nil
}

func (t *memTx) CountActiveOrdersByTable(ctx context.Context, tableID, excludeOrderID int64) (int, error) {
	n := 0
	for _, o := range t.s.orders {
		if o.TableID == tableID && o.ID != excludeOrderID && !o.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertMenuItem(ctx context.Context, m *domain.MenuItem) error {
	m.ID = t.next()
	t.s.menu[m.ID] = *m
	return nil
}

func (t *memTx) GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error) {
	m, ok := t.s.menu[id]
	if !ok {
		return nil, fmt.Errorf("%w: menu item %d", domain.ErrMenuItemNotFound, id)
	}
	return &m, nil
}

// Recipes.

func (t *memTx) InsertIngredient(ctx context.Context, ing *domain.Ingredient) error {
	t.s.recipes = append(t.s.recipes, *ing)
	return nil
}

func (t *memTx) ListIngredientsByMenuItems(ctx context.Context, menuItemIDs []int64) ([]domain.Ingredient, error) {
	want := make(map[int64]bool, len(menuItemIDs))
	for _, id := range menuItemIDs {
		want[id] = true
	}
	var out []domain.Ingredient
	for _, ing := range t.s.recipes {
		if want[ing.MenuItemID] {
			out = append(out, ing)
		}
	}
	return out, nil
}

// Inventory.

func (t *memTx) InsertInventoryItem(ctx context.Context, it *domain.InventoryItem) error {
	it.ID = t.next()
	t.s.inventory[it.ID] = *it
	return nil
}

func (t *memTx) GetInventoryItem(ctx context.Context, id int64) (*domain.InventoryItem, error) {
	it, ok := t.s.inventory[id]
	if !ok {
		return nil, fmt.Errorf("inventory item %d not found", id)
	}
	return &it, nil
}

func (t *memTx) GetInventoryItemsForUpdate(ctx context.Context, ids []int64) ([]domain.InventoryItem, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make([]domain.InventoryItem, 0, len(sorted))
	for _, id := range sorted {
		it, ok := t.s.inventory[id]
		if !ok {
			return nil, fmt.Errorf("inventory item %d not found", id)
		}
		out = append(out, it)
	}
	return out, nil
}

func (t *memTx) SetInventoryQuantity(ctx context.Context, id int64, qty float64) error {
	it, ok := t.s.inventory[id]
	if !ok {
		return fmt.Errorf("inventory item %d not found", id)
	}
	it.Quantity = qty
	t.s.inventory[id] = it
	return nil
}

func (t *memTx) InsertInventoryTransaction(ctx context.Context, txn *domain.InventoryTransaction) error {
	txn.ID = t.next()
	txn.CreatedAt = stamp(txn.CreatedAt)
	t.s.invTxns = append(t.s.invTxns, *txn)
	return nil
}

func (t *memTx) ListInventoryTransactions(ctx context.Context, itemID int64) ([]domain.InventoryTransaction, error) {
	var out []domain.InventoryTransaction
	for _, txn := range t.s.invTxns {
		if txn.ItemID == itemID {
			out = append(out, txn)
		}
	}
	return out, nil
}

// Kitchen dispatch.

func (t *memTx) InsertBatch(ctx context.Context, b *domain.KitchenBatch) error {
	b.ID = t.next()
	b.CreatedAt = stamp(b.CreatedAt)
	cp := *b
	cp.Tickets = nil
	t.s.batches[b.ID] = cp
	return nil
}

func (t *memTx) ListBatchesByOrder(ctx context.Context, orderID int64) ([]domain.KitchenBatch, error) {
	var out []domain.KitchenBatch
	for _, b := range t.s.batches {
		if b.OrderID == orderID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) InsertTicket(ctx context.Context, tk *domain.KitchenTicket) error {
	tk.ID = t.next()
	tk.CreatedAt = stamp(tk.CreatedAt)
	t.s.tickets[tk.ID] = *tk
	return nil
}

func (t *memTx) GetTicket(ctx context.Context, id int64) (*domain.KitchenTicket, error) {
	tk, ok := t.s.tickets[id]
	if !ok || tk.DeletedAt != nil {
		return nil, fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	return &tk, nil
}

func (t *memTx) ListTicketsByBatch(ctx context.Context, batchID int64) ([]domain.KitchenTicket, error) {
	var out []domain.KitchenTicket
	for _, tk := range t.s.tickets {
		if tk.BatchID == batchID && tk.DeletedAt == nil {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func statusSet(statuses []domain.TicketStatus) map[domain.TicketStatus]bool {
	set := make(map[domain.TicketStatus]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

func (t *memTx) ListTicketsByOrder(ctx context.Context, orderID int64, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error) {
	set := statusSet(statuses)
	var out []domain.KitchenTicket
	for _, tk := range t.s.tickets {
		if tk.OrderID != orderID || tk.DeletedAt != nil {
			continue
		}
		if len(statuses) > 0 && !set[tk.Status] {
			continue
		}
		out = append(out, tk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ListVoidableTickets(ctx context.Context, orderID, menuItemID int64) ([]domain.KitchenTicket, error) {
	var out []domain.KitchenTicket
	for _, tk := range t.s.tickets {
		if tk.OrderID != orderID || tk.MenuItemID != menuItemID || tk.DeletedAt != nil {
			continue
		}
		if !tk.Status.Voidable() {
			continue
		}
		out = append(out, tk)
	}
	// Newest first. IDs are monotonic, so they order like created_at
	// with a deterministic tie-break.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) ListTicketsByStatus(ctx context.Context, statuses []domain.TicketStatus) ([]domain.KitchenTicket, error) {
	set := statusSet(statuses)
	var out []domain.KitchenTicket
	for _, tk := range t.s.tickets {
		if tk.DeletedAt != nil {
			continue
		}
		if len(statuses) > 0 && !set[tk.Status] {
			continue
		}
		out = append(out, tk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) SetTicketQty(ctx context.Context, id int64, qty int) error {
	tk, ok := t.s.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	tk.Qty = qty
	t.s.tickets[id] = tk
	return nil
}

func (t *memTx) SetTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	tk, ok := t.s.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	tk.Status = status
	t.s.tickets[id] = tk
	return nil
}

func (t *memTx) CancelTicket(ctx context.Context, id int64, by, note string) error {
	tk, ok := t.s.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	now := time.Now().UTC()
	tk.Status = domain.TicketCancelled
	tk.CancelledBy = &by
	tk.CancelledAt = &now
	if note != "" {
		tk.CancelNote = &note
	}
	t.s.tickets[id] = tk
	return nil
}

func (t *memTx) DeleteTicket(ctx context.Context, id int64) error {
	tk, ok := t.s.tickets[id]
	if !ok {
		return fmt.Errorf("%w: ticket %d", domain.ErrTicketNotFound, id)
	}
	now := time.Now().UTC()
	tk.DeletedAt = &now
	t.s.tickets[id] = tk
	return nil
}

func (t *memTx) ReassignTickets(ctx context.Context, fromOrderID, toOrderID int64) error {
	for id, tk := range t.s.tickets {
		if tk.OrderID == fromOrderID {
			tk.OrderID = toOrderID
			t.s.tickets[id] = tk
		}
	}
	return nil
}

// Void audit log.

func (t *memTx) InsertVoidEvent(ctx context.Context, v *domain.VoidEvent) error {
	v.ID = t.next()
	v.CreatedAt = stamp(v.CreatedAt)
	t.s.voids = append(t.s.voids, *v)
	return nil
}

func (t *memTx) ListVoidEventsByOrder(ctx context.Context, orderID int64) ([]domain.VoidEvent, error) {
	var out []domain.VoidEvent
	for _, v := range t.s.voids {
		if v.OrderID == orderID {
			out = append(out, v)
		}
	}
	return out, nil
}
