package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func publishStatuses(t *testing.T, pub *SSEPublisher, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		status := GraphStatus{State: StateMerging, Nodes: i}
		if err := pub.Publish(TopicGraphStatus, StateMerging, status); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}
}

func TestEventBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicGraphStatus, TopicConfig{BufferSize: 3, ReplayAll: true})
	publishStatuses(t, pub, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicGraphStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Last 3 of 5
	for want := 3; want <= 5; want++ {
		select {
		case event := <-sub.Events():
			if event.Version != want {
				t.Errorf("Expected version %d, got %d", want, event.Version)
			}
			var status GraphStatus
			if err := json.Unmarshal(event.Data, &status); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if status.Nodes != want {
				t.Errorf("Expected payload nodes=%d, got %d", want, status.Nodes)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d", want)
		}
	}
}

func TestReplayLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.ConfigureTopic(TopicGraphStatus, TopicConfig{BufferSize: 5})
	publishStatuses(t, pub, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicGraphStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected version 3, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	publishStatuses(t, pub, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicGraphStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected replayed event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}

	if err := pub.Publish(TopicGraphStatus, StateReady, GraphStatus{State: StateReady}); err != nil {
		t.Fatalf("Failed to publish new event: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Version != 4 {
			t.Errorf("Expected version 4, got %d", event.Version)
		}
		if event.Type != StateReady {
			t.Errorf("Expected type %q, got %q", StateReady, event.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for new event")
	}
}

func TestLatestAndSubscribers(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	if _, ok := pub.Latest(TopicGraphStatus); ok {
		t.Error("expected no latest event before publishing")
	}

	pub.ConfigureTopic(TopicGraphStatus, TopicConfig{BufferSize: 1})
	publishStatuses(t, pub, 2)

	latest, ok := pub.Latest(TopicGraphStatus)
	if !ok || latest.Version != 2 {
		t.Errorf("expected latest version 2, got %+v (ok=%v)", latest, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicGraphStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if n := pub.Subscribers(TopicGraphStatus); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for pub.Subscribers(TopicGraphStatus) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := pub.Subscribers(TopicGraphStatus); n != 0 {
		t.Errorf("expected cancellation to unsubscribe, still %d", n)
	}
	_ = sub
}

func TestClose(t *testing.T) {
	pub := NewSSEPublisher()

	sub, err := pub.Subscribe(context.Background(), TopicGraphStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, open := <-sub.Events(); open {
		t.Error("expected event channel to be closed")
	}
	if err := pub.Publish(TopicGraphStatus, StateReady, nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicGraphStatus); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicGraphStatus, Type: StateReady, Data: json.RawMessage(`{"nodes":2}`), Version: 7}
	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "data: ") || !strings.HasSuffix(out, "\n\n") {
		t.Errorf("unexpected framing %q", out)
	}
	if !strings.Contains(out, `"version":7`) || !strings.Contains(out, `"nodes":2`) {
		t.Errorf("missing fields in %q", out)
	}
}
