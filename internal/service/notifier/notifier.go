package notifier

import (
	"context"

	"github.com/gen2brain/beeep"

	"github.com/oshokin/chromedriver-publisher/internal/logger"
)

// Notifier delivers a fire-and-forget signal of the run outcome.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Desktop sends notifications through the operating system's
// notification facility.
type Desktop struct{}

// NewDesktop creates a desktop notifier.
func NewDesktop() *Desktop {
	return &Desktop{}
}

// Notify shows a desktop notification.
func (*Desktop) Notify(ctx context.Context, title, message string) error {
	logger.DebugKV(ctx, "Sending desktop notification", "title", title)

	return beeep.Notify(title, message, "")
}

// Noop discards notifications. Used when they are disabled.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, _, _ string) error {
	return nil
}
