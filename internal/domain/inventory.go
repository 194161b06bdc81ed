package domain

import "time"

type InventoryAction string

const (
	InventoryOut    InventoryAction = "OUT"
	InventoryIn     InventoryAction = "IN"
	InventoryImport InventoryAction = "IMPORT"
	InventoryAdjust InventoryAction = "ADJUST"
	InventoryWaste  InventoryAction = "WASTE"
)

// Reference kinds recorded on inventory transactions.
const (
	RefOrder       = "ORDER"
	RefOrderCancel = "ORDER_CANCEL"
	RefSalesReturn = "SALES_RETURN"
	RefPurchase    = "PURCHASE"
	RefStocktake   = "STOCKTAKE"
)

// InventoryItem quantity is mutated only by the ledger's delta-apply
// routine, never assigned directly by callers.
type InventoryItem struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Unit           string  `json:"unit"`
	Quantity       float64 `json:"quantity"`
	AlertThreshold float64 `json:"alert_threshold"`
}

// InventoryTransaction is append-only; it is never updated or deleted.
type InventoryTransaction struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	Delta     float64         `json:"delta"`
	Action    InventoryAction `json:"action"`
	Before    float64         `json:"before"`
	After     float64         `json:"after"`
	RefType   string          `json:"ref_type,omitempty"`
	RefID     int64           `json:"ref_id,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Ingredient is one recipe line: the quantity of an inventory item
// consumed by one unit of a menu item, in the inventory item's base
// unit. Unique per (menu item, inventory item) pair.
type Ingredient struct {
	MenuItemID      int64   `json:"menu_item_id"`
	InventoryItemID int64   `json:"inventory_item_id"`
	Quantity        float64 `json:"quantity"`
}
