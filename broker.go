package main

// Event is one telemetry item: a ranger sample or a seek progress update.
type Event struct {
	name string
	data interface{}
}

// SampleEvent carries one ranger measurement to the SSE and multicast
// consumers.
type SampleEvent struct {
	Distance float64 `json:"distance"`
}

// Broker fans events out to the SSE and multicast subscribers. Slow
// subscribers lose events instead of stalling the publishers.
type Broker struct {
	publish     chan Event
	subscribe   chan chan Event
	unsubscribe chan chan Event
}

func NewBroker() *Broker {
	return &Broker{
		publish:     make(chan Event, 8),
		subscribe:   make(chan chan Event),
		unsubscribe: make(chan chan Event),
	}
}

func (b *Broker) Start() {
	subscribers := map[chan Event]struct{}{}

	for {
		select {
		case c := <-b.subscribe:
			subscribers[c] = struct{}{}

		case c := <-b.unsubscribe:
			delete(subscribers, c)
			close(c)

		case event := <-b.publish:
			for c := range subscribers {
				select {
				case c <- event:
				default:
				}
			}
		}
	}
}

func (b *Broker) Subscribe() chan Event {
	c := make(chan Event, 16)
	b.subscribe <- c
	return c
}

func (b *Broker) Unsubscribe(c chan Event) {
	b.unsubscribe <- c
}

func (b *Broker) Publish(event Event) {
	b.publish <- event
}
