// Package publisher defines the interface for run-completed notifications.
package publisher

import "context"

// Publisher delivers a payload to a named topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOp discards every publish. Used when notifications are not configured.
type NoOp struct{}

// Publish does nothing and returns an empty id.
func (NoOp) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
