package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type gateSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []Event
}

func newGateSink() *gateSink {
	return &gateSink{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gateSink) Emit(_ context.Context, event Event) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *gateSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}

	// All operations on the nil dispatcher are no-ops.
	d.Emit(context.Background(), Event{EventType: "ignored"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestDispatcherDeliversAndCloseDrains(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	for i := 0; i < 5; i++ {
		select {
		case <-sink.Events():
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not delivered before Close returned", i)
		}
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event is consumed by the worker, which then blocks in the sink.
	d.Emit(context.Background(), Event{EventType: "one"})
	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not reach the sink")
	}

	// Second event fills the buffer, third has nowhere to go.
	d.Emit(context.Background(), Event{EventType: "two"})
	d.Emit(context.Background(), Event{EventType: "three"})

	if got := d.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}

	close(sink.release)
	d.Close()

	if got := sink.count(); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "late"})

	select {
	case event := <-sink.Events():
		t.Fatalf("unexpected delivery of %q after Close", event.EventType)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "logout", Subject: "user-1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout_all", Subject: "user-1", Success: true})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event Event
	if err := json.Unmarshal(lines[0], &event); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if event.EventType != "logout" || event.Subject != "user-1" || !event.Success {
		t.Fatalf("unexpected decoded event %+v", event)
	}
}
