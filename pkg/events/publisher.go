package events

import (
	"fmt"

	"github.com/example/ecomshop/pkg/config"
)

// NewPublisher builds the publisher selected by cfg.Driver.
func NewPublisher(cfg *config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Queue)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
