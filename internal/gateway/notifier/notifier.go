// Package notifier pushes trade events to the operator.
package notifier

// Notifier delivers a short text notification. Delivery failures are logged
// by implementations and never block trading.
type Notifier interface {
	SendText(text string) error
}

// Noop discards everything; used when no channel is configured.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
