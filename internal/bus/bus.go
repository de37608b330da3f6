// Package bus provides event bus implementations for AquaHarvest.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

var (
	ErrClosed     = errors.New("bus is closed")
	ErrEmptyTopic = errors.New("topic is required")
	ErrNoReplyTo  = errors.New("message has no reply address")
)

// DefaultRequestTimeout bounds Request when ctx carries no deadline.
const DefaultRequestTimeout = 30 * time.Second

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
