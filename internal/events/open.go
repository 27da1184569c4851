package events

import (
	"context"
	"fmt"

	"github.com/skinguardian/client/config"
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "rabbitmq":
		return NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
