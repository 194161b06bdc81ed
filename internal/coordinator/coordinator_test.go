package coordinator

import (
	"context"
	"testing"

	"dishpatch/internal/domain"
	"dishpatch/internal/fanout"
	"dishpatch/internal/store"
	"dishpatch/internal/store/memory"
	"dishpatch/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	service *Service
	store   store.Store
	bus     *fanout.Bus

	tableA, tableB int64
	pho, rolls     int64 // menu items
	noodles, beef  int64 // inventory items
}

// newFixture seeds two tables and two dishes. Phở takes 100g noodles
// and 150g beef per unit, gỏi cuốn takes 50g noodles. Stock covers
// three phở at most.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), bus: fanout.NewBus()}
	f.service = NewService(f.store, f.bus, logger.NewLogger("coordinator-test"))

	ctx := context.Background()
	err := f.store.WithinTx(ctx, func(tx store.Tx) error {
		ta := domain.Table{Name: "Bàn 1"}
		tb := domain.Table{Name: "Bàn 2"}
		if err := tx.InsertTable(ctx, &ta); err != nil {
			return err
		}
		if err := tx.InsertTable(ctx, &tb); err != nil {
			return err
		}
		f.tableA, f.tableB = ta.ID, tb.ID

		pho := domain.MenuItem{Name: "Phở bò", Price: 65000, Available: true}
		rolls := domain.MenuItem{Name: "Gỏi cuốn", Price: 35000, Available: true}
		if err := tx.InsertMenuItem(ctx, &pho); err != nil {
			return err
		}
		if err := tx.InsertMenuItem(ctx, &rolls); err != nil {
			return err
		}
		f.pho, f.rolls = pho.ID, rolls.ID

		noodles := domain.InventoryItem{Name: "bánh phở", Unit: "g", Quantity: 1000, AlertThreshold: 100}
		beef := domain.InventoryItem{Name: "thịt bò", Unit: "g", Quantity: 450}
		if err := tx.InsertInventoryItem(ctx, &noodles); err != nil {
			return err
		}
		if err := tx.InsertInventoryItem(ctx, &beef); err != nil {
			return err
		}
		f.noodles, f.beef = noodles.ID, beef.ID

		for _, ing := range []domain.Ingredient{
			{MenuItemID: f.pho, InventoryItemID: f.noodles, Quantity: 100},
			{MenuItemID: f.pho, InventoryItemID: f.beef, Quantity: 150},
			{MenuItemID: f.rolls, InventoryItemID: f.noodles, Quantity: 50},
		} {
			if err := tx.InsertIngredient(ctx, &ing); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) stock(t *testing.T, id int64) float64 {
	t.Helper()
	var q float64
	err := f.store.WithinTx(context.Background(), func(tx store.Tx) error {
		it, err := tx.GetInventoryItem(context.Background(), id)
		if err != nil {
			return err
		}
		q = it.Quantity
		return nil
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) table(t *testing.T, id int64) domain.Table {
	t.Helper()
	var tb domain.Table
	err := f.store.WithinTx(context.Background(), func(tx store.Tx) error {
		got, err := tx.GetTable(context.Background(), id)
		if err != nil {
			return err
		}
		tb = *got
		return nil
	})
	require.NoError(t, err)
	return tb
}

func TestCreateOrderDebitsStockAndOccupiesTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 2},
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)
	require.Equal(t, domain.OrderPending, order.Status)
	require.Len(t, order.Items, 2)
	require.Equal(t, 65000.0, order.Items[0].Price)

	require.Equal(t, 1000.0-2*100-50, f.stock(t, f.noodles))
	require.Equal(t, 450.0-2*150, f.stock(t, f.beef))
	require.True(t, f.table(t, f.tableA).Occupied)

	events := f.bus.Events(fanout.GroupWaiter)
	require.NotEmpty(t, events)
	require.Equal(t, fanout.EventOrderChanged, events[0].Type)
	require.Equal(t, fanout.ReasonCreated, events[0].Reason)
}

func TestCreateOrderInsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Beef covers exactly three phở; four must fail.
	_, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 4},
	}, "an")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Contains(t, err.Error(), "thịt bò cần 600, còn 450")

	require.Equal(t, 1000.0, f.stock(t, f.noodles))
	require.Equal(t, 450.0, f.stock(t, f.beef))
	require.False(t, f.table(t, f.tableA).Occupied)
	require.Empty(t, f.bus.Events(fanout.GroupWaiter))
}

func TestAddItemsRequiresEditableOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, "req-2", order.ID, "an", "cashier", "khách đổi ý")
	require.NoError(t, err)

	_, err = f.service.AddItems(ctx, "req-3", order.ID, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
	}, nil, "an")
	require.ErrorIs(t, err, domain.ErrOrderNotEditable)
}

func TestCancelOrderRestoresStockVoidsTicketsFreesTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 2},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
	}, "an", false, "")
	require.NoError(t, err)

	cancelled, err := f.service.CancelOrder(ctx, "req-3", order.ID, "an", "cashier", "khách huỷ")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, cancelled.Status)

	require.Equal(t, 1000.0, f.stock(t, f.noodles))
	require.Equal(t, 450.0, f.stock(t, f.beef))
	require.False(t, f.table(t, f.tableA).Occupied)

	// No live tickets survive.
	tickets, err := f.service.ListTicketsByStatus(ctx, domain.TicketLiveStatuses)
	require.NoError(t, err)
	require.Empty(t, tickets)

	// Cancel audit record exists per item.
	err = f.store.WithinTx(ctx, func(tx store.Tx) error {
		voids, err := tx.ListVoidEventsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		require.Len(t, voids, 1)
		require.Equal(t, 2, voids[0].Quantity)
		require.Equal(t, "khách huỷ", voids[0].Reason)
		return nil
	})
	require.NoError(t, err)
}

func TestCancelledOrderCannotBeCancelledAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, "req-2", order.ID, "an", "cashier", "")
	require.NoError(t, err)
	_, err = f.service.CancelOrder(ctx, "req-3", order.ID, "an", "cashier", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Inventory credited exactly once.
	require.Equal(t, 1000.0, f.stock(t, f.noodles))
}

func TestSetItemQuantityIncreaseNotifiesKitchenForDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)
	f.bus.Reset()

	updated, err := f.service.SetItemQuantity(ctx, "req-2", order.ID, order.Items[0].ID, 3, "an", "waiter")
	require.NoError(t, err)
	require.Equal(t, 3, updated.Items[0].Quantity)
	require.Equal(t, 1000.0-50-2*50, f.stock(t, f.noodles))

	kitchen := f.bus.Events(fanout.GroupKitchen)
	var batches int
	for _, ev := range kitchen {
		if ev.Type == fanout.EventNewKitchenBatch {
			batches++
			b := ev.Payload.(*domain.KitchenBatch)
			require.Len(t, b.Tickets, 1)
			require.Equal(t, 2, b.Tickets[0].Qty)
		}
	}
	require.Equal(t, 1, batches)
}

func TestSetItemQuantityDecreaseReconcilesTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 3},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
	}, "an", false, "")
	require.NoError(t, err)

	updated, err := f.service.SetItemQuantity(ctx, "req-3", order.ID, order.Items[0].ID, 1, "an", "waiter")
	require.NoError(t, err)
	require.Equal(t, 1, updated.Items[0].Quantity)

	// Inventory credited for two units.
	require.Equal(t, 450.0-3*150+2*150, f.stock(t, f.beef))

	// The ticket shrank with the line.
	tickets, err := f.service.ListTicketsByStatus(ctx, domain.TicketLiveStatuses)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.Equal(t, 1, tickets[0].Qty)
}

func TestSetItemQuantityZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	updated, err := f.service.SetItemQuantity(ctx, "req-2", order.ID, order.Items[0].ID, 0, "an", "waiter")
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, f.rolls, updated.Items[0].MenuItemID)
	require.Equal(t, 450.0, f.stock(t, f.beef))
}

func TestSoftReconfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	confirmed, err := f.service.UpdateOrderStatus(ctx, "req-2", order.ID, domain.OrderConfirmed, "an")
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, confirmed.Status)

	// Second confirm: same status, extra history row, no error.
	again, err := f.service.UpdateOrderStatus(ctx, "req-3", order.ID, domain.OrderConfirmed, "an")
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, again.Status)

	history, err := f.service.GetOrderHistory(ctx, order.ID)
	require.NoError(t, err)
	var reconfirms int
	for _, h := range history {
		if h.Note == "soft re-confirm" {
			reconfirms++
		}
	}
	require.Equal(t, 1, reconfirms)
}

func TestInvalidOrderTransitionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.UpdateOrderStatus(ctx, "req-2", order.ID, domain.OrderReady, "an")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBulkItemStatusOutcomesAndDerivedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)
	a, b := order.Items[0].ID, order.Items[1].ID

	outcomes, err := f.service.UpdateItemStatusBulk(ctx, "req-2", order.ID, []int64{a, b}, domain.ItemPreparing, "bếp")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, oc := range outcomes {
		require.Equal(t, domain.BulkApplied, oc.Result)
	}

	got, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderPreparing, got.Status)

	// Repeat is skipped per row, not an error.
	outcomes, err = f.service.UpdateItemStatusBulk(ctx, "req-3", order.ID, []int64{a}, domain.ItemPreparing, "bếp")
	require.NoError(t, err)
	require.Equal(t, domain.BulkSkipped, outcomes[0].Result)

	// SERVED straight from PREPARING aborts the call.
	_, err = f.service.UpdateItemStatusBulk(ctx, "req-4", order.ID, []int64{a, b}, domain.ItemServed, "bếp")
	require.ErrorIs(t, err, domain.ErrInvalidItemTransition)
}

func TestNotifyCreatesBatchAndConfirmsPendingItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 2},
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	batch, err := f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
		{OrderItemID: order.Items[1].ID},
	}, "an", true, "khách vội")
	require.NoError(t, err)
	require.Len(t, batch.Tickets, 2)
	require.True(t, batch.Priority)
	require.Equal(t, "Bàn 1", batch.TableName)

	got, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, got.Status)
	for _, it := range got.Items {
		require.Equal(t, domain.ItemConfirmed, it.Status)
	}

	history, err := f.service.GetNotifyHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestMergeConservesQuantitiesAndFoldsByNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
		{MenuItemID: f.rolls, Quantity: 1, Note: "không rau"},
	}, "an")
	require.NoError(t, err)
	dst, err := f.service.CreateOrder(ctx, "req-2", f.tableB, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 2},
	}, "binh")
	require.NoError(t, err)

	merged, err := f.service.MergeOrders(ctx, "req-3", src.ID, dst.ID, "an")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)

	total := 0
	for _, it := range merged.Items {
		total += it.Quantity
		if it.MenuItemID == f.pho {
			require.Equal(t, 3, it.Quantity) // folded 1 + 2
		}
	}
	require.Equal(t, 4, total)

	gotSrc, err := f.service.GetOrder(ctx, src.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderMerged, gotSrc.Status)
	require.Empty(t, gotSrc.Items)
	require.False(t, f.table(t, f.tableA).Occupied)
	require.True(t, f.table(t, f.tableB).Occupied)

	// No inventory movement on merge.
	require.Equal(t, 1000.0-3*100-50, f.stock(t, f.noodles))
}

func TestMergeRejectsTerminalOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)
	dst, err := f.service.CreateOrder(ctx, "req-2", f.tableB, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.CancelOrder(ctx, "req-3", dst.ID, "an", "cashier", "")
	require.NoError(t, err)

	_, err = f.service.MergeOrders(ctx, "req-4", src.ID, dst.ID, "an")
	require.ErrorIs(t, err, domain.ErrOrderNotMergeable)

	_, err = f.service.MergeOrders(ctx, "req-5", src.ID, src.ID, "an")
	require.ErrorIs(t, err, domain.ErrOrderNotMergeable)
}

func TestSplitMovesQuantitiesToNewOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 3},
		{MenuItemID: f.rolls, Quantity: 2},
	}, "an")
	require.NoError(t, err)

	tableB := f.tableB
	target, err := f.service.SplitOrder(ctx, "req-2", src.ID, SplitRequest{
		TableID: &tableB,
		Lines: []SplitLine{
			{ItemID: src.Items[0].ID, Quantity: 1},
			{ItemID: src.Items[1].ID, Quantity: 2},
		},
	}, "an")
	require.NoError(t, err)
	require.Len(t, target.Items, 2)
	require.True(t, f.table(t, f.tableB).Occupied)

	gotSrc, err := f.service.GetOrder(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, gotSrc.Items, 1)
	require.Equal(t, 2, gotSrc.Items[0].Quantity)

	// Quantity conserved across the pair, no inventory movement.
	require.Equal(t, 1000.0-3*100-2*50, f.stock(t, f.noodles))
}

func TestSplitCannotEmptySource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 2},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.SplitOrder(ctx, "req-2", src.ID, SplitRequest{
		Lines: []SplitLine{{ItemID: src.Items[0].ID, Quantity: 2}},
	}, "an")
	require.ErrorIs(t, err, domain.ErrSourceWouldBeEmpty)

	_, err = f.service.SplitOrder(ctx, "req-3", src.ID, SplitRequest{
		Lines: []SplitLine{{ItemID: src.Items[0].ID, Quantity: 5}},
	}, "an")
	require.ErrorIs(t, err, domain.ErrBadQuantity)
}

func TestCancelFromKitchenShrinksLineAndNotifiesWaiter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 3},
	}, "an")
	require.NoError(t, err)

	batch, err := f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
	}, "an", false, "")
	require.NoError(t, err)
	f.bus.Reset()

	ticket, err := f.service.CancelFromKitchen(ctx, "req-3", batch.Tickets[0].ID, 1, "bếp", "hết thịt bò")
	require.NoError(t, err)
	require.Equal(t, 2, ticket.Qty)

	got, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Items[0].Quantity)
	require.Equal(t, 450.0-3*150+150, f.stock(t, f.beef))

	waiter := f.bus.Events(fanout.GroupWaiter)
	require.NotEmpty(t, waiter)
	var voided bool
	for _, ev := range waiter {
		if ev.Type == fanout.EventTicketsVoided {
			voided = true
		}
	}
	require.True(t, voided)
}

func TestUpdateTicketStatusBulkSyncsItemsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	batch, err := f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
	}, "an", false, "")
	require.NoError(t, err)
	id := batch.Tickets[0].ID

	_, err = f.service.UpdateTicketStatusBulk(ctx, "req-3", []int64{id}, domain.TicketPreparing, "bếp")
	require.NoError(t, err)
	_, err = f.service.UpdateTicketStatusBulk(ctx, "req-4", []int64{id}, domain.TicketReady, "bếp")
	require.NoError(t, err)

	got, err := f.service.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderReady, got.Status)
	require.Equal(t, domain.ItemReady, got.Items[0].Status)
}

func TestImportAdjustWaste(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.service.ImportStock(ctx, "req-1", f.beef, 500, 12, "nhập hàng sáng")
	require.NoError(t, err)
	require.Equal(t, 950.0, item.Quantity)

	item, err = f.service.AdjustStock(ctx, "req-2", f.beef, -50, "kiểm kê")
	require.NoError(t, err)
	require.Equal(t, 900.0, item.Quantity)

	item, err = f.service.RecordWaste(ctx, "req-3", f.beef, 100, "hỏng")
	require.NoError(t, err)
	require.Equal(t, 800.0, item.Quantity)

	_, err = f.service.ImportStock(ctx, "req-4", f.beef, -5, 0, "")
	require.ErrorIs(t, err, domain.ErrBadQuantity)

	txs, err := f.service.GetInventoryHistory(ctx, f.beef)
	require.NoError(t, err)
	require.Len(t, txs, 3)
}

type fakeInvoices struct {
	created   []int64
	paid      []int64
	cancelled []int64
}

func (f *fakeInvoices) CreateInvoiceFromOrder(ctx context.Context, orderID int64) error {
	f.created = append(f.created, orderID)
	return nil
}

func (f *fakeInvoices) MarkPaid(ctx context.Context, orderID int64) error {
	f.paid = append(f.paid, orderID)
	return nil
}

func (f *fakeInvoices) CancelInvoice(ctx context.Context, orderID int64) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func TestInvoiceLifecycleFollowsOrderTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := &fakeInvoices{}
	f.service.WithInvoices(inv)

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	for _, to := range []domain.OrderStatus{
		domain.OrderConfirmed, domain.OrderPreparing, domain.OrderReady,
	} {
		_, err = f.service.UpdateOrderStatus(ctx, "req-2", order.ID, to, "an")
		require.NoError(t, err)
	}
	require.Empty(t, inv.created)

	// SERVED creates the invoice, PAID marks it paid.
	_, err = f.service.UpdateOrderStatus(ctx, "req-3", order.ID, domain.OrderServed, "an")
	require.NoError(t, err)
	require.Equal(t, []int64{order.ID}, inv.created)
	require.Empty(t, inv.paid)

	// Soft re-confirm must not create a second invoice.
	_, err = f.service.UpdateOrderStatus(ctx, "req-4", order.ID, domain.OrderConfirmed, "an")
	require.NoError(t, err)
	require.Equal(t, []int64{order.ID}, inv.created)

	_, err = f.service.UpdateOrderStatus(ctx, "req-5", order.ID, domain.OrderPaid, "an")
	require.NoError(t, err)
	require.Equal(t, []int64{order.ID}, inv.paid)
	require.Empty(t, inv.cancelled)
}

func TestInvoiceCancelledOnCancelTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := &fakeInvoices{}
	f.service.WithInvoices(inv)

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.UpdateOrderStatus(ctx, "req-2", order.ID, domain.OrderCancelled, "an")
	require.NoError(t, err)
	require.Equal(t, []int64{order.ID}, inv.cancelled)
	require.Empty(t, inv.created)
}

func TestCancelFromKitchenWithRemovedLineStillCancelsTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 2},
	}, "an")
	require.NoError(t, err)

	batch, err := f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
	}, "an", false, "")
	require.NoError(t, err)

	// Drop the order line underneath the ticket.
	err = f.store.WithinTx(ctx, func(tx store.Tx) error {
		return tx.DeleteOrderItem(ctx, order.Items[0].ID)
	})
	require.NoError(t, err)
	noodlesBefore := f.stock(t, f.noodles)

	ticket, err := f.service.CancelFromKitchen(ctx, "req-3", batch.Tickets[0].ID, 0, "bếp", "khách huỷ")
	require.NoError(t, err)
	require.Equal(t, domain.TicketCancelled, ticket.Status)

	// No line, no restore: stock is untouched.
	require.Equal(t, noodlesBefore, f.stock(t, f.noodles))
}

func TestBulkItemStatusMirrorsOntoTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.pho, Quantity: 1},
		{MenuItemID: f.rolls, Quantity: 1},
	}, "an")
	require.NoError(t, err)

	_, err = f.service.NotifyItems(ctx, "req-2", order.ID, []NotifyLine{
		{OrderItemID: order.Items[0].ID},
		{OrderItemID: order.Items[1].ID},
	}, "an", false, "")
	require.NoError(t, err)

	ids := []int64{order.Items[0].ID, order.Items[1].ID}
	_, err = f.service.UpdateItemStatusBulk(ctx, "req-3", order.ID, ids, domain.ItemPreparing, "bếp")
	require.NoError(t, err)

	tickets, err := f.service.ListTicketsByStatus(ctx, []domain.TicketStatus{domain.TicketPreparing})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
}

func TestLowStockEventOnThresholdCrossing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Noodles at 1000, threshold 100. Eighteen gỏi cuốn leave exactly 100.
	_, err := f.service.CreateOrder(ctx, "req-1", f.tableA, []ItemRequest{
		{MenuItemID: f.rolls, Quantity: 18},
	}, "an")
	require.NoError(t, err)

	var low int
	for _, ev := range f.bus.Events(fanout.GroupCashier) {
		if ev.Type == fanout.EventLowStock {
			low++
		}
	}
	require.Equal(t, 1, low)
}
