package ledger

import (
	"context"
	"errors"
	"testing"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
	"dishpatch/internal/store/memory"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, st store.Store, items ...domain.InventoryItem) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(items))
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		for i := range items {
			if err := tx.InsertInventoryItem(context.Background(), &items[i]); err != nil {
				return err
			}
			ids = append(ids, items[i].ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func stock(t *testing.T, st store.Store, id int64) float64 {
	t.Helper()
	var q float64
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
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

func TestConsumeAndRestoreRoundTrip(t *testing.T) {
	st := memory.New()
	ids := seed(t, st,
		domain.InventoryItem{Name: "bột mì", Unit: "g", Quantity: 1000},
		domain.InventoryItem{Name: "thịt bò", Unit: "g", Quantity: 500},
	)

	need := map[int64]float64{ids[0]: 300, ids[1]: 150}
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := Consume(context.Background(), tx, need, Ref{Type: domain.RefOrder, ID: 1})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 700.0, stock(t, st, ids[0]))
	require.Equal(t, 350.0, stock(t, st, ids[1]))

	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		return Restore(context.Background(), tx, need, Ref{Type: domain.RefOrderCancel, ID: 1})
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, stock(t, st, ids[0]))
	require.Equal(t, 500.0, stock(t, st, ids[1]))
}

func TestConsumeNeverPartiallyDebits(t *testing.T) {
	st := memory.New()
	ids := seed(t, st,
		domain.InventoryItem{Name: "bột mì", Unit: "g", Quantity: 1000},
		domain.InventoryItem{Name: "thịt bò", Unit: "g", Quantity: 100},
	)

	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := Consume(context.Background(), tx, map[int64]float64{
			ids[0]: 300,
			ids[1]: 150, // short by 50
		}, Ref{Type: domain.RefOrder, ID: 1})
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Contains(t, err.Error(), "thịt bò cần 150, còn 100")

	// Neither item moved, including the one that had enough.
	require.Equal(t, 1000.0, stock(t, st, ids[0]))
	require.Equal(t, 100.0, stock(t, st, ids[1]))
}

func TestConsumeReportsThresholdCrossing(t *testing.T) {
	st := memory.New()
	ids := seed(t, st,
		domain.InventoryItem{Name: "phô mai", Unit: "g", Quantity: 120, AlertThreshold: 100},
	)

	var low []domain.InventoryItem
	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		low, err = Consume(context.Background(), tx, map[int64]float64{ids[0]: 30}, Ref{Type: domain.RefOrder, ID: 1})
		return err
	})
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, 90.0, low[0].Quantity)

	// Already below threshold, no repeated alert.
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		low, err = Consume(context.Background(), tx, map[int64]float64{ids[0]: 10}, Ref{Type: domain.RefOrder, ID: 2})
		return err
	})
	require.NoError(t, err)
	require.Empty(t, low)
}

func TestMoveRejectsNegativeResult(t *testing.T) {
	st := memory.New()
	ids := seed(t, st, domain.InventoryItem{Name: "cà chua", Unit: "kg", Quantity: 5})

	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		_, err := Move(context.Background(), tx, ids[0], -8, domain.InventoryWaste, Ref{Type: domain.RefStocktake})
		return err
	})
	require.True(t, errors.Is(err, domain.ErrInsufficientStock))
	require.Equal(t, 5.0, stock(t, st, ids[0]))
}

func TestLedgerRecordsBeforeAndAfter(t *testing.T) {
	st := memory.New()
	ids := seed(t, st, domain.InventoryItem{Name: "hành lá", Unit: "g", Quantity: 200})

	err := st.WithinTx(context.Background(), func(tx store.Tx) error {
		if _, err := Consume(context.Background(), tx, map[int64]float64{ids[0]: 50}, Ref{Type: domain.RefOrder, ID: 7}); err != nil {
			return err
		}
		_, err := Move(context.Background(), tx, ids[0], 100, domain.InventoryImport, Ref{Type: domain.RefPurchase, ID: 3})
		return err
	})
	require.NoError(t, err)

	var txs []domain.InventoryTransaction
	err = st.WithinTx(context.Background(), func(tx store.Tx) error {
		var err error
		txs, err = tx.ListInventoryTransactions(context.Background(), ids[0])
		return err
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	byAction := map[domain.InventoryAction]domain.InventoryTransaction{}
	for _, x := range txs {
		byAction[x.Action] = x
	}
	out := byAction[domain.InventoryOut]
	require.Equal(t, -50.0, out.Delta)
	require.Equal(t, 200.0, out.Before)
	require.Equal(t, 150.0, out.After)
	require.Equal(t, domain.RefOrder, out.RefType)
	require.Equal(t, int64(7), out.RefID)

	imp := byAction[domain.InventoryImport]
	require.Equal(t, 100.0, imp.Delta)
	require.Equal(t, 250.0, imp.After)
}
