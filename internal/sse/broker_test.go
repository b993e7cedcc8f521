package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: ExportProgress, Data: map[string]int{"done": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: export.progress") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"done":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSessionEvent_PreviewThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// The first update per session triggers preview.invalidated, the second
	// one right after does not. Another session has its own throttle.
	b.PublishSessionEvent("updated", "split", "a")
	b.PublishSessionEvent("updated", "split", "a")
	b.PublishSessionEvent("updated", "merge", "b")

	time.Sleep(50 * time.Millisecond)
	previewCount := 0
	updateCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "event: preview.invalidated") {
				previewCount++
			} else if strings.Contains(s, "event: session.updated") {
				updateCount++
			}
		default:
			break loop
		}
	}

	if updateCount != 3 {
		t.Errorf("session events = %d, want 3", updateCount)
	}
	if previewCount != 2 {
		t.Errorf("preview events = %d, want 2 (throttled per session)", previewCount)
	}
}

func TestPublishSessionEvent_Deleted(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishSessionEvent("deleted", "merge", "x")
	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: session.deleted") || !strings.Contains(s, `"id":"x"`) {
			t.Errorf("unexpected message %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected follow-up %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: FontLoaded, Data: map[string]string{"family": "Inter"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: font.loaded") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: ExportProgress, Data: map[string]int{"i": i}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: SessionUpdated, Data: SessionRef{Mode: "split", ID: "x"}})
	b.PublishSessionEvent("updated", "split", "x")
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestSubscribeFiltersBySession(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	only := b.Subscribe("a")
	defer b.Unsubscribe(only)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	b.PublishSessionEvent("deleted", "split", "b")
	b.Publish(Event{Type: ExportProgress, Data: map[string]string{"id": "job-b"}, Session: "b"})
	b.Publish(Event{Type: FontLoaded, Data: map[string]string{"family": "Inter"}})
	b.PublishSessionEvent("deleted", "split", "a")

	got := drain(only)
	if len(got) != 2 {
		t.Fatalf("filtered client got %d events: %q", len(got), got)
	}
	joined := strings.Join(got, "")
	if !strings.Contains(joined, "event: font.loaded") || !strings.Contains(joined, `"id":"a"`) || strings.Contains(joined, "job-b") {
		t.Errorf("filtered events = %q", got)
	}
	if n := len(drain(all)); n != 4 {
		t.Errorf("unfiltered client got %d events, want 4", n)
	}
}

func TestSSEHandlerSessionQuery(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?session=a", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	b.PublishSessionEvent("deleted", "merge", "b")
	b.PublishSessionEvent("deleted", "merge", "a")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if strings.Contains(body, `"id":"b"`) || !strings.Contains(body, `"id":"a"`) {
		t.Errorf("body = %q", body)
	}
}
