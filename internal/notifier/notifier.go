/**
 * @description
 * The notifier is the boundary to the out-of-scope notification system.
 * Billing publishes events describing what happened; the notification system
 * owns templates and delivery channels. Delivery failure is non-fatal by
 * contract: the financial state has already been committed, so a failed
 * publish is logged and dropped, never rolled back into the calling operation.
 */

package notifier

import (
	"context"
	"log"

	"github.com/lodgebook/billing-service/internal/domain"
	"github.com/lodgebook/billing-service/pkg/rabbitmq"
)

const (
	billingExchange       = "billing_events"
	routingKeyInvoicePaid = "invoice.paid"
	routingKeyLateFee     = "invoice.latefee.accrued"
)

// Notifier delivers tenant-facing billing notifications.
type Notifier interface {
	InvoicePaid(ctx context.Context, event domain.InvoicePaidEvent)
	LateFeeAccrued(ctx context.Context, event domain.LateFeeAccruedEvent)
}

// EventNotifier publishes notification events to the billing exchange.
type EventNotifier struct {
	publisher rabbitmq.Publisher
}

// NewEventNotifier wraps a RabbitMQ publisher.
func NewEventNotifier(publisher rabbitmq.Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) InvoicePaid(ctx context.Context, event domain.InvoicePaidEvent) {
	if err := n.publisher.Publish(ctx, billingExchange, routingKeyInvoicePaid, event); err != nil {
		log.Printf("level=warn component=notifier msg=\"receipt notification publish failed\" invoice_id=%s err=%v", event.InvoiceID, err)
	}
}

func (n *EventNotifier) LateFeeAccrued(ctx context.Context, event domain.LateFeeAccruedEvent) {
	if err := n.publisher.Publish(ctx, billingExchange, routingKeyLateFee, event); err != nil {
		log.Printf("level=warn component=notifier msg=\"late fee notification publish failed\" invoice_id=%s err=%v", event.InvoiceID, err)
	}
}

// Noop discards all notifications. Used in tests and when the broker is not
// configured at all.
type Noop struct{}

func (Noop) InvoicePaid(ctx context.Context, event domain.InvoicePaidEvent)       {}
func (Noop) LateFeeAccrued(ctx context.Context, event domain.LateFeeAccruedEvent) {}
