package msg

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Topic selects which messages a subscriber receives
type Topic int

const (
	// Status carries run state transitions
	Status Topic = iota
	// Config carries the input configuration of a run
	Config
	// Result carries the results of a solved run
	Result
)

func (t Topic) String() string {
	switch t {
	case Status:
		return "status"
	case Config:
		return "config"
	case Result:
		return "result"
	}
	return "unknown"
}

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is a payload tagged with its sender and topic
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the topic the message was published on
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// BufferSize is the capacity of each subscriber channel
const BufferSize = 50

// ErrClosed is returned by Subscribe after Close
var ErrClosed = errors.New("publisher is closed")

// PubSub fans messages out to subscribers by topic. Publish never blocks;
// a message is dropped and logged for a subscriber whose buffer is full.
type PubSub struct {
	mux     *sync.Mutex
	pid     uuid.UUID
	subs    map[Topic]map[uuid.UUID]chan Msg
	closed  bool
	dropped int
	log     logrus.FieldLogger
}

// NewPublisher returns a PubSub that publishes as pid
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:  &sync.Mutex{},
		pid:  pid,
		subs: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// SetLogger reports dropped messages on log
func (p *PubSub) SetLogger(log logrus.FieldLogger) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.log = log
}

// Dropped counts the deliveries lost to full buffers
func (p *PubSub) Dropped() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.dropped
}

// PID process id
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel on which the specified topic is broadcast.
// Subscribing twice to a topic returns the same channel.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if _, ok := p.subs[topic]; !ok {
		p.subs[topic] = make(map[uuid.UUID]chan Msg)
	}
	if ch, ok := p.subs[topic][pid]; ok {
		return ch, nil
	}
	ch := make(chan Msg, BufferSize)
	p.subs[topic][pid] = ch
	return ch, nil
}

// Unsubscribe pid from all topic broadcasts and close its channels
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subs {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish sends payload on topic as this publisher
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.Forward(New(p.pid, topic, payload))
}

// Forward sends m to the subscribers of its topic, keeping its sender
func (p *PubSub) Forward(m Msg) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for pid, ch := range p.subs[m.topic] {
		select {
		case ch <- m:
		default:
			p.dropped++
			if p.log != nil {
				p.log.WithFields(logrus.Fields{
					"subscriber": pid,
					"sender":     m.sender,
					"topic":      m.topic,
				}).Warn("subscriber buffer full, message dropped")
			}
		}
	}
}

// Close unsubscribes everyone and rejects further subscriptions
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subs {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
	}
	p.closed = true
}

// Consume calls handle for each message received on chans until stop is
// closed, then for every message the channels still buffer. Each channel
// has its own reader, so handle must be safe for concurrent use; order is
// kept per channel. Consume returns when all readers are done, which is
// also the case once every channel is closed.
func Consume(stop <-chan struct{}, handle func(Msg), chans ...<-chan Msg) {
	var wg sync.WaitGroup
	for _, ch := range chans {
		wg.Add(1)
		go func(ch <-chan Msg) {
			defer wg.Done()
			for {
				select {
				case m, ok := <-ch:
					if !ok {
						return
					}
					handle(m)
				case <-stop:
					drain(ch, handle)
					return
				}
			}
		}(ch)
	}
	wg.Wait()
}

func drain(ch <-chan Msg, handle func(Msg)) {
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			handle(m)
		default:
			return
		}
	}
}
