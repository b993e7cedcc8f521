// Package sse implements a Server-Sent Events broker for export progress,
// font readiness and session redraw hints.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	ExportProgress     = "export.progress"
	ExportCompleted    = "export.completed"
	ExportFailed       = "export.failed"
	ExportCancelled    = "export.cancelled"
	FontLoaded         = "font.loaded"
	SessionUpdated     = "session.updated"
	SessionDeleted     = "session.deleted"
	PreviewInvalidated = "preview.invalidated"
)

// Event represents an SSE event to broadcast. Events with a Session only
// reach clients watching every session or that one.
type Event struct {
	Type    string `json:"type"`
	Data    any    `json:"data"`
	Session string `json:"-"`
}

// SessionRef identifies a session in event payloads.
type SessionRef struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type sessionEventReq struct {
	kind string
	ref  SessionRef
}

type subscription struct {
	ch      chan []byte
	session string
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the client set and the per-session preview
// throttle; every public method talks to it over channels.
type Broker struct {
	previewMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	sessionCh     chan sessionEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. previewThrottle is the minimum
// interval between two preview.invalidated events for the same session.
func NewBroker(previewThrottle time.Duration) *Broker {
	if previewThrottle <= 0 {
		previewThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		previewMin:    previewThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		sessionCh:     make(chan sessionEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// frame renders one event in wire format.
func frame(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), true
}

func (b *Broker) run() {
	defer close(b.stopped)

	// channel -> watched session ("" watches all).
	clients := make(map[chan []byte]string)
	lastPreview := make(map[SessionRef]time.Time)

	broadcast := func(event Event) {
		raw, ok := frame(event)
		if !ok {
			return
		}
		for ch, watched := range clients {
			if watched != "" && event.Session != "" && watched != event.Session {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.session

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.sessionCh:
			switch req.kind {
			case "updated":
				broadcast(Event{Type: SessionUpdated, Data: req.ref, Session: req.ref.ID})
			case "deleted":
				delete(lastPreview, req.ref)
				broadcast(Event{Type: SessionDeleted, Data: req.ref, Session: req.ref.ID})
				continue
			}

			now := time.Now()
			if now.Sub(lastPreview[req.ref]) >= b.previewMin {
				lastPreview[req.ref] = now
				broadcast(Event{Type: PreviewInvalidated, Data: req.ref, Session: req.ref.ID})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client watching session, or every session when it is
// empty, and returns its channel.
func (b *Broker) Subscribe(session string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, session: session}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSessionEvent announces a session change ("updated" or "deleted").
// Updates are followed by a preview.invalidated event, throttled per session.
func (b *Broker) PublishSessionEvent(kind, mode, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.sessionCh <- sessionEventReq{kind: kind, ref: SessionRef{Mode: mode, ID: id}}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// session query parameter narrows the stream to one session plus global
// events such as font loads.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("session"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
