package common

import (
	"context"

	"gochat/internal/chat/models"
)

// MessagePublisher hands a stored message to the realtime fan-out.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *models.Message) error
}

// Subject delivers events to per-conversation listeners
type Subject interface {
	Notify(event MessageEvent)
	NotifyAsync(event MessageEvent)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
