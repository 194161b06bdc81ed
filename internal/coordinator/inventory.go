package coordinator

import (
	"context"
	"fmt"

	"dishpatch/internal/domain"
	"dishpatch/internal/ledger"
	"dishpatch/internal/store"
)

// ImportStock credits a purchase delivery onto one inventory item.
func (s *Service) ImportStock(ctx context.Context, requestID string, itemID int64, qty float64, refID int64, note string) (*domain.InventoryItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: import quantity must be positive, got %v", domain.ErrBadQuantity, qty)
	}
	return s.move(ctx, requestID, itemID, qty, domain.InventoryImport,
		ledger.Ref{Type: domain.RefPurchase, ID: refID, Note: note}, "stock_imported")
}

// AdjustStock applies a signed stocktake correction. Negative deltas
// are rejected when they would take the item below zero.
func (s *Service) AdjustStock(ctx context.Context, requestID string, itemID int64, delta float64, note string) (*domain.InventoryItem, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment delta must be non-zero", domain.ErrBadQuantity)
	}
	return s.move(ctx, requestID, itemID, delta, domain.InventoryAdjust,
		ledger.Ref{Type: domain.RefStocktake, Note: note}, "stock_adjusted")
}

// RecordWaste debits spoiled or dropped stock.
func (s *Service) RecordWaste(ctx context.Context, requestID string, itemID int64, qty float64, note string) (*domain.InventoryItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: waste quantity must be positive, got %v", domain.ErrBadQuantity, qty)
	}
	return s.move(ctx, requestID, itemID, -qty, domain.InventoryWaste,
		ledger.Ref{Type: domain.RefStocktake, Note: note}, "waste_recorded")
}

func (s *Service) move(ctx context.Context, requestID string, itemID int64, delta float64, action domain.InventoryAction, ref ledger.Ref, logAction string) (*domain.InventoryItem, error) {
	var (
		item   *domain.InventoryItem
		events []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		before, err := tx.GetInventoryItem(ctx, itemID)
		if err != nil {
			return err
		}
		it, err := ledger.Move(ctx, tx, itemID, delta, action, ref)
		if err != nil {
			return err
		}
		if it.AlertThreshold > 0 && before.Quantity > it.AlertThreshold && it.Quantity <= it.AlertThreshold {
			events = append(events, lowStockEvents([]domain.InventoryItem{*it})...)
		}
		item = it
		return nil
	})
	if err != nil {
		s.logger.Error(requestID, logAction+"_failed", "Inventory movement failed", err)
		return nil, err
	}

	s.logger.Info(requestID, logAction, fmt.Sprintf("Item %d moved by %v (%s)", itemID, delta, action))
	s.emit(requestID, events)
	return item, nil
}

// GetInventoryItem returns one item's current stock.
func (s *Service) GetInventoryItem(ctx context.Context, itemID int64) (*domain.InventoryItem, error) {
	var item *domain.InventoryItem
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		it, err := tx.GetInventoryItem(ctx, itemID)
		if err != nil {
			return err
		}
		item = it
		return nil
	})
	return item, err
}

// GetInventoryHistory returns the item's ledger entries, newest first.
func (s *Service) GetInventoryHistory(ctx context.Context, itemID int64) ([]domain.InventoryTransaction, error) {
	var txs []domain.InventoryTransaction
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetInventoryItem(ctx, itemID); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListInventoryTransactions(ctx, itemID)
		return err
	})
	return txs, err
}
