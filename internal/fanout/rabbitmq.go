package fanout

import (
	"encoding/json"

	"dishpatch/pkg/rabbitmq"
)

// RabbitPublisher routes events through the pos_events topic exchange
// with the subscriber group as the routing key prefix.
type RabbitPublisher struct {
	rmq *rabbitmq.RabbitMQ
}

func NewRabbitPublisher(rmq *rabbitmq.RabbitMQ) *RabbitPublisher {
	return &RabbitPublisher{rmq: rmq}
}

func (p *RabbitPublisher) Publish(channel string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	routingKey := channel + "." + event.Type
	return p.rmq.PublishMessage(rabbitmq.EventsExchange, routingKey, body)
}
