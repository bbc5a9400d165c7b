package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Message is one server → client frame.
type Message struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Reply bool   `json:"reply,omitempty"`
}

// Outbox is a participant's delivery queue. The transport drains C() and
// stops when Done() is closed. The channel itself is never closed, so an
// Offer racing with Close is safe.
type Outbox struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func NewOutbox(size int) *Outbox {
	return &Outbox{ch: make(chan Message, size), done: make(chan struct{})}
}

func (o *Outbox) C() <-chan Message      { return o.ch }
func (o *Outbox) Done() <-chan struct{} { return o.done }

func (o *Outbox) Close() { o.once.Do(func() { close(o.done) }) }

// Offer queues msg without blocking. It reports false when the outbox is
// closed or full.
func (o *Outbox) Offer(msg Message) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.ch <- msg:
		return true
	default:
		return false
	}
}

// Port is how a lobby reaches its participants.
type Port interface {
	Attach(id string, out *Outbox)
	Detach(id string)
	Send(id string, msg Message)
	Broadcast(msg Message)
	Len() int
	CloseAll()
}

// Fanout delivers to a set of outboxes. A participant whose outbox is full is
// treated as slow: the outbox is closed and the participant detached.
// Fanout is owned by a single lobby goroutine and is not locked.
type Fanout struct {
	clients map[string]*Outbox
	log     *zap.Logger
}

func NewFanout(log *zap.Logger) *Fanout {
	return &Fanout{clients: make(map[string]*Outbox), log: log}
}

func (f *Fanout) Attach(id string, out *Outbox) {
	if out == nil {
		return
	}
	f.clients[id] = out
}

func (f *Fanout) Detach(id string) { delete(f.clients, id) }

func (f *Fanout) Len() int { return len(f.clients) }

func (f *Fanout) Send(id string, msg Message) {
	out, ok := f.clients[id]
	if !ok {
		return
	}
	f.deliver(id, out, msg)
}

func (f *Fanout) Broadcast(msg Message) {
	for id, out := range f.clients {
		f.deliver(id, out, msg)
	}
}

// CloseAll closes every outbox and forgets them.
func (f *Fanout) CloseAll() {
	for id, out := range f.clients {
		out.Close()
		delete(f.clients, id)
	}
}

func (f *Fanout) deliver(id string, out *Outbox, msg Message) {
	if out.Offer(msg) {
		return
	}
	f.log.Warn("dropping slow participant", zap.String("participant", id), zap.String("event", msg.Type))
	out.Close()
	delete(f.clients, id)
}
