package notifiers

import "context"

// Notifier delivers events to a downstream channel (Telegram, SQS, HTTP, etc).
type Notifier interface {
	ID() string
	Type() string
	Notify(ctx context.Context, evt Event) error
}
