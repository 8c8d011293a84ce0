// Package sse streams session events to browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types published by sessions.
const (
	TypeContentChanged  = "content.changed"  // local edit, data carries the markdown
	TypeContentReplaced = "content.replaced" // external content applied
	TypeContentDeferred = "content.deferred" // external content waiting for blur
	TypeOutlineUpdated  = "outline.updated"  // throttled per session
	TypeSessionClosed   = "session.closed"
	TypeImportFinished  = "import.finished"
)

// Event is one message. An empty Session reaches every client.
type Event struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Data    any    `json:"data"`
}

type subscribeReq struct {
	ch      chan []byte
	session string
}

// Broker fans events out to SSE clients. Clients may filter on a session.
//
// A single goroutine owns the client set and the per-session outline
// throttle; public methods talk to it over channels.
type Broker struct {
	outlineMin time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	contentCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. outlineThrottle bounds how often
// outline.updated is sent per session.
func NewBroker(outlineThrottle time.Duration) *Broker {
	if outlineThrottle <= 0 {
		outlineThrottle = 2 * time.Second
	}

	b := &Broker{
		outlineMin:    outlineThrottle,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		contentCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastOutline := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, session := range clients {
			if session != "" && event.Session != "" && session != event.Session {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
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

		case req := <-b.subscribeCh:
			clients[req.ch] = req.session

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			if event.Type == TypeSessionClosed {
				delete(lastOutline, event.Session)
			}
			broadcast(event)

		case event := <-b.contentCh:
			broadcast(event)

			now := time.Now()
			if now.Sub(lastOutline[event.Session]) >= b.outlineMin {
				lastOutline[event.Session] = now
				broadcast(Event{Type: TypeOutlineUpdated, Session: event.Session, Data: map[string]string{}})
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

// Subscribe adds a client. A non-empty session limits it to that
// session's events plus global ones.
func (b *Broker) Subscribe(session string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, session: session}:
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

// Publish sends an event as is.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishContent sends a content event followed by a throttled
// outline.updated for the same session.
func (b *Broker) PublishContent(kind, session string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.contentCh <- Event{Type: kind, Session: session, Data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint (GET /api/events?session=<id>).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
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
