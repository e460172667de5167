package events

import (
	"context"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishNotification(context.Background(), &NotificationEvent{
		ComponentID: 1,
		Type:        "state",
		Sequence:    1,
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *NotificationEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *NotificationEvent) error {
		captured = event
		return nil
	})

	event := &NotificationEvent{
		Server:      "//host/jobs",
		Address:     "//host/jobs:top/a",
		ComponentID: 4,
		Type:        "state",
		Sequence:    5,
		Payload:     "COMPLETE",
		Timestamp:   "2025-01-01T00:00:00Z",
	}

	err := pub.PublishNotification(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.ComponentID != 4 {
		t.Errorf("expected component 4, got %d", captured.ComponentID)
	}
	if captured.Sequence != 5 {
		t.Errorf("expected sequence 5, got %d", captured.Sequence)
	}
}
