// Package subscriber consumes one group's event queue and renders each
// event for that station's display. Cashier, waiter and kitchen clients
// run one subscriber each.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"dishpatch/internal/fanout"
	"dishpatch/pkg/config"
	"dishpatch/pkg/logger"
	"dishpatch/pkg/rabbitmq"
)

type Subscriber struct {
	group    string
	config   *config.Config
	logger   *logger.Logger
	rabbitMQ *rabbitmq.RabbitMQ
}

func New(group string, cfg *config.Config, log *logger.Logger) *Subscriber {
	return &Subscriber{
		group:  group,
		config: cfg,
		logger: log,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	rmq, err := rabbitmq.ConnectRabbitMQ(&s.config.RabbitMQ, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	s.rabbitMQ = rmq

	queueName := fmt.Sprintf("pos_%s_queue", s.group)
	messages, err := rmq.Channel.Consume(
		queueName, // queue
		"",        // consumer
		true,      // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	s.logger.Info("startup", "subscriber_started", fmt.Sprintf("Subscribed to %s events", s.group))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if err := s.processMessage(msg.Body); err != nil {
				s.logger.Error("message_processing", "process_failed", "Failed to process message", err)
			}
		}
	}
}

func (s *Subscriber) processMessage(body []byte) error {
	var ev fanout.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	s.display(ev)
	s.logger.Debug("message_processing", "event_displayed",
		fmt.Sprintf("Displayed %s for order %d", ev.Type, ev.OrderID))
	return nil
}

func (s *Subscriber) display(ev fanout.Event) {
	switch ev.Type {
	case fanout.EventOrderChanged:
		fmt.Printf("[%s] order %d changed (%s)\n", s.group, ev.OrderID, ev.Reason)
	case fanout.EventNewKitchenBatch:
		fmt.Printf("[%s] new kitchen batch for order %d\n", s.group, ev.OrderID)
	case fanout.EventTicketStatusChanged:
		fmt.Printf("[%s] ticket progress on order %d\n", s.group, ev.OrderID)
	case fanout.EventTicketsVoided:
		fmt.Printf("[%s] tickets voided on order %d\n", s.group, ev.OrderID)
	case fanout.EventOrderVoided:
		fmt.Printf("[%s] order %d voided, clear local tickets\n", s.group, ev.OrderID)
	case fanout.EventLowStock:
		fmt.Printf("[%s] low stock alert\n", s.group)
	default:
		fmt.Printf("[%s] %s\n", s.group, ev.Type)
	}
}

func (s *Subscriber) Stop() {
	if s.rabbitMQ != nil {
		s.rabbitMQ.Close()
	}
}
