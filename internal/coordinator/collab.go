package coordinator

import (
	"context"
	"fmt"

	"dishpatch/internal/domain"
	"dishpatch/internal/store"
)

// InvoiceStatus is the lifecycle of the billing collaborator's invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "UNPAID"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// InvoiceService is the billing collaborator. Calls happen after the
// order transaction commits; a failure is logged, never rolled back
// against.
type InvoiceService interface {
	CreateInvoiceFromOrder(ctx context.Context, orderID int64) error
	MarkPaid(ctx context.Context, orderID int64) error
	CancelInvoice(ctx context.Context, orderID int64) error
}

// CustomerService is the CRM collaborator.
type CustomerService interface {
	AttachCustomerToOrder(ctx context.Context, orderID int64, customerID string) error
}

// AttachCustomer links a customer record to an existing order through
// the CRM collaborator.
func (s *Service) AttachCustomer(ctx context.Context, requestID string, orderID int64, customerID string) error {
	if s.customers == nil {
		return fmt.Errorf("customer service not configured")
	}
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return fmt.Errorf("%w: order %d is %s", domain.ErrOrderNotEditable, orderID, o.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.customers.AttachCustomerToOrder(ctx, orderID, customerID); err != nil {
		s.logger.Error(requestID, "attach_customer_failed", "Failed to attach customer", err)
		return err
	}
	s.logger.Info(requestID, "customer_attached", fmt.Sprintf("Customer %s attached to order %d", customerID, orderID))
	return nil
}
