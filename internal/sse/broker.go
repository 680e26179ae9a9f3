// Package sse implements a Server-Sent Events broker for real-time updates.
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
	TypeBucketUpdated      = "bucket.updated"
	TypeCollectionSnapshot = "collection.snapshot"
	TypeWeekUpdated        = "week.updated"
)

// Event represents an SSE event to broadcast. An empty Owner reaches every
// client; otherwise only that owner's clients receive it.
type Event struct {
	Owner string      `json:"-"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
}

// BucketUpdate is the payload of a bucket.updated event.
type BucketUpdate struct {
	Kind    string      `json:"kind"`
	Key     string      `json:"key"`
	Records interface{} `json:"records"`
}

type bucketEventReq struct {
	owner  string
	update BucketUpdate
}

type client struct {
	owner string
	ch    chan []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-owner week throttle timestamps). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	weekMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	bucketEventCh chan bucketEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given week.updated throttle interval.
func NewBroker(weekThrottle time.Duration) *Broker {
	if weekThrottle <= 0 {
		weekThrottle = 2 * time.Second
	}

	b := &Broker{
		weekMin:       weekThrottle,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		bucketEventCh: make(chan bucketEventReq, 256),
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
	lastWeek := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, owner := range clients {
			if event.Owner != "" && owner != event.Owner {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case c := <-b.subscribeCh:
			clients[c.ch] = c.owner

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.bucketEventCh:
			broadcast(Event{Owner: req.owner, Type: TypeBucketUpdated, Data: req.update})

			now := time.Now()
			if now.Sub(lastWeek[req.owner]) >= b.weekMin {
				lastWeek[req.owner] = now
				broadcast(Event{Owner: req.owner, Type: TypeWeekUpdated, Data: map[string]string{"kind": req.update.Kind}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for owner and returns its channel. An empty owner
// receives every event.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{owner: owner, ch: ch}:
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

// Publish sends an event to the matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishBucketEvent publishes a bucket change and a throttled week.updated
// hint to owner's clients.
func (b *Broker) PublishBucketEvent(owner string, update BucketUpdate) {
	if b.closed.Load() {
		return
	}
	select {
	case b.bucketEventCh <- bucketEventReq{owner: owner, update: update}:
	case <-b.stopped:
	}
}

// Serve streams owner's events to w until the request ends.
func (b *Broker) Serve(w http.ResponseWriter, r *http.Request, owner string) {
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

	ch := b.Subscribe(owner)
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
