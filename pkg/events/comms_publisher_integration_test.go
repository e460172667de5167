package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to create server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("events:comms_publisher_integration_test - server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("events:comms_publisher_integration_test - failed to connect: %v", err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func TestCommsPublisher_PublishNotification_DefaultSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14330)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)

	received := make(chan *NotificationEvent, 1)
	sub, err := nc.Subscribe("facade.notify.7.state", func(msg *comms.Msg) {
		var event NotificationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("events:comms_publisher_integration_test - failed to unmarshal: %v", err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	event := &NotificationEvent{
		Server:      "//host/jobs",
		Address:     "//host/jobs:top/build",
		ComponentID: 7,
		Type:        "state",
		Sequence:    3,
		Payload:     map[string]any{"state": "COMPLETE"},
		Timestamp:   "2025-01-01T00:00:00Z",
	}

	if err := publisher.PublishNotification(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_integration_test - PublishNotification failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.ComponentID != 7 {
			t.Errorf("events:comms_publisher_integration_test - ComponentID = %d, want 7", got.ComponentID)
		}
		if got.Sequence != 3 {
			t.Errorf("events:comms_publisher_integration_test - Sequence = %d, want 3", got.Sequence)
		}
		if got.Address != "//host/jobs:top/build" {
			t.Errorf("events:comms_publisher_integration_test - Address = %q", got.Address)
		}
		payload, _ := got.Payload.(map[string]any)
		if payload["state"] != "COMPLETE" {
			t.Errorf("events:comms_publisher_integration_test - Payload = %v", got.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_integration_test - timeout waiting for notification")
	}
}

func TestCommsPublisher_CustomPrefixWildcard(t *testing.T) {
	nc, cleanup := startTestServer(t, 14331)
	defer cleanup()

	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{SubjectPrefix: "jobs.events"})

	received := make(chan string, 2)
	sub, err := nc.Subscribe("jobs.events.2.>", func(msg *comms.Msg) {
		received <- msg.Subject
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	for _, typ := range []string{"state", "structure"} {
		err := publisher.PublishNotification(context.Background(), &NotificationEvent{ComponentID: 2, Type: typ, Sequence: 1})
		if err != nil {
			t.Fatalf("events:comms_publisher_integration_test - PublishNotification failed: %v", err)
		}
	}
	nc.Flush()

	want := map[string]bool{"jobs.events.2.state": true, "jobs.events.2.structure": true}
	for i := 0; i < 2; i++ {
		select {
		case subject := <-received:
			if !want[subject] {
				t.Errorf("events:comms_publisher_integration_test - unexpected subject %q", subject)
			}
			delete(want, subject)
		case <-time.After(5 * time.Second):
			t.Fatal("events:comms_publisher_integration_test - timeout waiting for notifications")
		}
	}
}

func TestNewCommsPublisher_NilOpts(t *testing.T) {
	nc, cleanup := startTestServer(t, 14332)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	if publisher.subjectPrefix != "facade.notify" {
		t.Errorf("events:comms_publisher_integration_test - subjectPrefix = %q, want %q",
			publisher.subjectPrefix, "facade.notify")
	}
}

func TestCommsPublisher_UnencodablePayload(t *testing.T) {
	nc, cleanup := startTestServer(t, 14333)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	err := publisher.PublishNotification(context.Background(), &NotificationEvent{
		ComponentID: 1,
		Type:        "state",
		Payload:     make(chan int),
	})
	if err == nil {
		t.Fatal("events:comms_publisher_integration_test - expected encode error")
	}
}
