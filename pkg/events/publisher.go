package events

import "context"

// Publisher is the interface for exporting component notifications.
type Publisher interface {
	PublishNotification(ctx context.Context, event *NotificationEvent) error
}

// NoOpPublisher is a Publisher that does nothing (for in-process usage without export).
type NoOpPublisher struct{}

// PublishNotification is a no-op.
func (p *NoOpPublisher) PublishNotification(_ context.Context, _ *NotificationEvent) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *NotificationEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *NotificationEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishNotification calls the callback.
func (p *CallbackPublisher) PublishNotification(ctx context.Context, event *NotificationEvent) error {
	return p.callback(ctx, event)
}
