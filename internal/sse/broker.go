// Package sse streams appointment changes to calendar clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Appointment event kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindMoved   = "moved"
	KindDeleted = "deleted"
)

// LayoutEvent lists the appointments changed since the previous layout.updated.
type LayoutEvent struct {
	IDs []string `json:"ids"`
}

const (
	defaultHistory   = 64
	defaultHeartbeat = 25 * time.Second
)

// Option configures a Broker.
type Option func(*Broker)

// WithHistory keeps the last n frames for Last-Event-ID replay.
func WithHistory(n int) Option {
	return func(b *Broker) { b.history = n }
}

// WithHeartbeat sets the keep-alive comment interval; zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

type appointmentEventReq struct {
	kind string
	id   string
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

type frame struct {
	id  uint64
	raw []byte
}

// Broker fans events out to connected clients.
//
// A single goroutine owns the client set, the replay history and the layout
// throttle; public methods talk to it over channels.
type Broker struct {
	layoutMin time.Duration
	history   int
	heartbeat time.Duration

	subscribeCh        chan subscription
	unsubscribeCh      chan chan []byte
	publishCh          chan Event
	appointmentEventCh chan appointmentEventReq
	countReqCh         chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits layout.updated at most once per
// layoutThrottle. Changes inside the window are coalesced into a trailing
// layout.updated when it closes.
func NewBroker(layoutThrottle time.Duration, opts ...Option) *Broker {
	if layoutThrottle <= 0 {
		layoutThrottle = 2 * time.Second
	}

	b := &Broker{
		layoutMin:          layoutThrottle,
		history:            defaultHistory,
		heartbeat:          defaultHeartbeat,
		subscribeCh:        make(chan subscription),
		unsubscribeCh:      make(chan chan []byte),
		publishCh:          make(chan Event, 256),
		appointmentEventCh: make(chan appointmentEventReq, 256),
		countReqCh:         make(chan chan int),
		stopCh:             make(chan struct{}),
		stopped:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.history < 0 {
		b.history = 0
	}

	go b.run()
	return b
}

func (b *Broker) clientBuffer() int {
	return max(64, b.history)
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq        uint64
		frames     []frame
		lastLayout time.Time
		pending    = make(map[string]struct{})
		timer      *time.Timer
		timerC     <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		if b.history > 0 {
			frames = append(frames, frame{id: seq, raw: raw})
			if len(frames) > b.history {
				frames = slices.Delete(frames, 0, len(frames)-b.history)
			}
		}

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	flushLayout := func(now time.Time) {
		ids := make([]string, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		clear(pending)
		lastLayout = now
		broadcast(Event{Type: "layout.updated", Data: LayoutEvent{IDs: ids}})
	}

	for {
		select {
		case <-b.stopCh:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.lastID == 0 {
				continue
			}
			for _, f := range frames {
				if f.id <= sub.lastID {
					continue
				}
				select {
				case sub.ch <- f.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.appointmentEventCh:
			switch req.kind {
			case KindCreated, KindUpdated, KindMoved, KindDeleted:
			default:
				continue
			}
			broadcast(Event{Type: "appointment." + req.kind, Data: map[string]string{"id": req.id}})
			pending[req.id] = struct{}{}
			if timerC != nil {
				continue
			}
			now := time.Now()
			if wait := b.layoutMin - now.Sub(lastLayout); wait > 0 {
				timer = time.NewTimer(wait)
				timerC = timer.C
			} else {
				flushLayout(now)
			}

		case <-timerC:
			timer, timerC = nil, nil
			flushLayout(time.Now())

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

// Subscribe adds a new client and returns its channel. A non-zero
// lastEventID replays the retained frames published after it.
func (b *Broker) Subscribe(lastEventID uint64) chan []byte {
	ch := make(chan []byte, b.clientBuffer())
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastEventID}:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishAppointmentEvent publishes appointment.<kind> and schedules a
// throttled layout.updated covering id.
func (b *Broker) PublishAppointmentEvent(kind, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.appointmentEventCh <- appointmentEventReq{kind: kind, id: id}:
	case <-b.stopped:
	}
}

// lastEventID reads the reconnect position from the Last-Event-ID header,
// or the last_event_id query parameter for clients that cannot set headers.
func lastEventID(r *http.Request) uint64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("last_event_id")
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe(lastEventID(r))
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
