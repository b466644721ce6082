package notifications

import (
	"context"

	"github.com/agmlabs/storebuilder-backend/pkg/db/models"
	"github.com/agmlabs/storebuilder-backend/pkg/enums"
	"github.com/agmlabs/storebuilder-backend/pkg/logger"
)

// Sender delivers a single notification over some channel (email, WhatsApp).
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Notifier fans order lifecycle events out to sellers and buyers. Delivery is
// fire-and-forget: a dead channel must never fail an order operation.
type Notifier struct {
	senders []Sender
	logger  *logger.Logger
}

// New builds a notifier over the provided channels.
func New(logg *logger.Logger, senders ...Sender) *Notifier {
	return &Notifier{senders: senders, logger: logg}
}

// OrderPlaced notifies the seller that a new order arrived.
func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order, store *models.Store) {
	if n == nil || order == nil || store == nil {
		return
	}
	subject := "New order " + order.OrderNumber
	body := order.CustomerName + " placed an order for " + order.Total.StringFixed(2) + " NGN"
	n.dispatch(ctx, store.Username, subject, body)
}

// OrderStatusChanged notifies the buyer about a fulfillment transition.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	if n == nil || order == nil {
		return
	}
	recipient := order.CustomerPhone
	if order.CustomerEmail != nil && *order.CustomerEmail != "" {
		recipient = *order.CustomerEmail
	}
	subject := "Order " + order.OrderNumber + " update"
	body := "Your order is now " + string(order.Status)
	n.dispatch(ctx, recipient, subject, body)
}

// PaymentReceived notifies the seller that an order was paid.
func (n *Notifier) PaymentReceived(ctx context.Context, order *models.Order, store *models.Store) {
	if n == nil || order == nil || store == nil {
		return
	}
	subject := "Payment received for " + order.OrderNumber
	body := order.Total.StringFixed(2) + " NGN was received for order " + order.OrderNumber
	n.dispatch(ctx, store.Username, subject, body)
}

func (n *Notifier) dispatch(ctx context.Context, recipient, subject, body string) {
	for _, sender := range n.senders {
		if err := sender.Send(ctx, recipient, subject, body); err != nil {
			if n.logger != nil {
				n.logger.Error(ctx, "notification delivery failed", err)
			}
		}
	}
}

// LogSender writes notifications to the structured log. It stands in for real
// channels in dev and keeps the pipeline observable in prod.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender builds the logging sender.
func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logger: logg}
}

func (s *LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	if s.logger == nil {
		return nil
	}
	ctx = s.logger.WithFields(ctx, map[string]any{
		"recipient": recipient,
		"subject":   subject,
	})
	s.logger.Info(ctx, "notification dispatched")
	return nil
}
