package dispatch

import (
	"context"
	"testing"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
	"dishpatch/internal/store/memory"

	"github.com/stretchr/testify/require"
)

func newBatch(t *testing.T, st store.Store, orderID int64, lines ...NotifyLine) *domain.KitchenBatch {
	t.Helper()
	var batch *domain.KitchenBatch
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		batch, err = Notify(context.Background(), tx, &domain.KitchenBatch{
			OrderID: orderID, TableName: "Bàn 1", StaffName: "an",
		}, lines)
		return err
	})
	require.NoError(t, err)
	return batch
}

func TestNotifyCreatesOneTicketPerLine(t *testing.T) {
	st := memory.New()
	batch := newBatch(t, st, 1,
		NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 2},
		NotifyLine{MenuItemID: 11, Name: "Gỏi cuốn", Qty: 1},
	)
	require.NotZero(t, batch.ID)
	require.Len(t, batch.Tickets, 2)
	for _, tk := range batch.Tickets {
		require.Equal(t, domain.TicketPending, tk.Status)
		require.Equal(t, batch.ID, tk.BatchID)
	}

	// Separate notify, separate batch, never folded.
	second := newBatch(t, st, 1, NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 1})
	require.NotEqual(t, batch.ID, second.ID)

	var history []domain.KitchenBatch
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		history, err = NotifyHistory(context.Background(), tx, 1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestNotifyRejectsEmptyAndNonPositive(t *testing.T) {
	st := memory.New()
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := Notify(context.Background(), tx, &domain.KitchenBatch{OrderID: 1}, nil)
		return err
	})
	require.ErrorIs(t, err, domain.ErrBadQuantity)

	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := Notify(context.Background(), tx, &domain.KitchenBatch{OrderID: 1},
			[]NotifyLine{{MenuItemID: 10, Qty: 0}})
		return err
	})
	require.ErrorIs(t, err, domain.ErrBadQuantity)
}

// Scenario: one ticket of qty 3. Voiding 2 shrinks it to 1; voiding 1
// more deletes it; a further void finds nothing and reports the full
// remainder.
func TestVoidByMenuShrinksThenDeletes(t *testing.T) {
	st := memory.New()
	batch := newBatch(t, st, 1, NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 3})
	ticketID := batch.Tickets[0].ID

	var res *VoidResult
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = VoidByMenu(context.Background(), tx, 1, 10, 2)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Voided)
	require.Equal(t, 0, res.Remaining)
	require.Len(t, res.Patches, 1)
	require.Equal(t, "updated", res.Patches[0].Action)
	require.Equal(t, 3, res.Patches[0].QtyBefore)
	require.Equal(t, 1, res.Patches[0].QtyAfter)

	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = VoidByMenu(context.Background(), tx, 1, 10, 1)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Voided)
	require.Len(t, res.Patches, 1)
	require.Equal(t, "deleted", res.Patches[0].Action)

	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.GetTicket(context.Background(), ticketID)
		return err
	})
	require.ErrorIs(t, err, domain.ErrTicketNotFound)

	// Nothing voidable left: clamp to zero, report the shortfall.
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = VoidByMenu(context.Background(), tx, 1, 10, 5)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Voided)
	require.Equal(t, 5, res.Remaining)
	require.Empty(t, res.Patches)
}

func TestVoidByMenuPrefersNewestTickets(t *testing.T) {
	st := memory.New()
	first := newBatch(t, st, 1, NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 2})
	second := newBatch(t, st, 1, NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 2})

	var res *VoidResult
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = VoidByMenu(context.Background(), tx, 1, 10, 2)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Voided)
	require.Len(t, res.Patches, 1)
	require.Equal(t, second.Tickets[0].ID, res.Patches[0].TicketID)

	// The older ticket survives untouched.
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		tk, err := tx.GetTicket(context.Background(), first.Tickets[0].ID)
		if err != nil {
			return err
		}
		require.Equal(t, 2, tk.Qty)
		return nil
	})
	require.NoError(t, err)
}

func TestVoidByMenuSkipsCookingTickets(t *testing.T) {
	st := memory.New()
	batch := newBatch(t, st, 1, NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 2})

	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.SetTicketStatus(context.Background(), batch.Tickets[0].ID, domain.TicketPreparing)
	})
	require.NoError(t, err)

	var res *VoidResult
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		res, err = VoidByMenu(context.Background(), tx, 1, 10, 2)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Voided)
	require.Equal(t, 2, res.Remaining)
}

func TestUpdateStatusBulkSkipsAndAborts(t *testing.T) {
	st := memory.New()
	batch := newBatch(t, st, 1,
		NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 1},
		NotifyLine{MenuItemID: 11, Name: "Gỏi cuốn", Qty: 1},
	)
	a, b := batch.Tickets[0].ID, batch.Tickets[1].ID

	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.SetTicketStatus(context.Background(), a, domain.TicketPreparing)
	})
	require.NoError(t, err)

	var outcomes []TicketOutcome
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		outcomes, err = UpdateStatusBulk(context.Background(), tx, []int64{a, b}, domain.TicketPreparing)
		return err
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.Equal(t, domain.BulkSkipped, outcomes[0].Result)
	require.Equal(t, domain.BulkApplied, outcomes[1].Result)

	// READY from PENDING is invalid and aborts everything.
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		third := newTicket(t, tx, 1)
		_, err := UpdateStatusBulk(context.Background(), tx, []int64{third, a}, domain.TicketReady)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInvalidItemTransition)
}

func newTicket(t *testing.T, tx store.Tx, orderID int64) int64 {
	t.Helper()
	b := &domain.KitchenBatch{OrderID: orderID}
	require.NoError(t, tx.InsertBatch(context.Background(), b))
	tk := &domain.KitchenTicket{BatchID: b.ID, OrderID: orderID, MenuItemID: 12, Name: "Chè", Qty: 1, Status: domain.TicketPending}
	require.NoError(t, tx.InsertTicket(context.Background(), tk))
	return tk.ID
}

func TestOrderProgressAggregatesPerMenuItem(t *testing.T) {
	st := memory.New()
	batch := newBatch(t, st, 1,
		NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 2},
		NotifyLine{MenuItemID: 10, Name: "Phở bò", Qty: 1},
		NotifyLine{MenuItemID: 11, Name: "Gỏi cuốn", Qty: 1},
	)
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.SetTicketStatus(context.Background(), batch.Tickets[0].ID, domain.TicketPreparing)
	})
	require.NoError(t, err)

	var rows []ProgressRow
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		rows, err = OrderProgress(context.Background(), tx, 1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(10), rows[0].MenuItemID)
	require.Equal(t, 3, rows[0].Total)
	require.Equal(t, 2, rows[0].ByStatus[domain.TicketPreparing])
	require.Equal(t, 1, rows[0].ByStatus[domain.TicketPending])
}
