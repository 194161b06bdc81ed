package domain

import "errors"

// Error texts double as stable codes surfaced verbatim to API callers.
var (
	ErrOrderNotFound    = errors.New("ORDER_NOT_FOUND")
	ErrItemNotFound     = errors.New("ITEM_NOT_FOUND")
	ErrTableNotFound    = errors.New("TABLE_NOT_FOUND")
	ErrMenuItemNotFound = errors.New("MENU_ITEM_NOT_FOUND")
	ErrTicketNotFound   = errors.New("TICKET_NOT_FOUND")

	ErrInvalidTransition     = errors.New("INVALID_TRANSITION")
	ErrInvalidItemTransition = errors.New("INVALID_ITEM_TRANSITION")
	ErrOrderNotEditable      = errors.New("ORDER_NOT_EDITABLE_IN_THIS_STATUS")
	ErrOrderNotMergeable     = errors.New("ORDER_NOT_MERGEABLE")
	ErrSourceWouldBeEmpty    = errors.New("SOURCE_WOULD_BECOME_EMPTY")
	ErrTicketNotCancellable  = errors.New("TICKET_NOT_CANCELLABLE")

	ErrInsufficientStock = errors.New("INSUFFICIENT_STOCK")

	ErrBadQuantity = errors.New("BAD_QUANTITY")
)
