package broadcast

// Sink receives weather events.
type Sink interface {
	Broadcast(event string, data interface{})
}

// Multi sends every event to all sinks in order.
type Multi []Sink

// Broadcast implements Sink.
func (m Multi) Broadcast(event string, data interface{}) {
	for _, s := range m {
		s.Broadcast(event, data)
	}
}

// Discard drops all events.
type Discard struct{}

// Broadcast implements Sink.
func (Discard) Broadcast(string, interface{}) {}
