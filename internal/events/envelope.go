package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is the wire frame for both directions of the push channel.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Event is a named payload waiting to be encoded.
type Event struct {
	Name string
	Data interface{}
}

func New(name string, data interface{}) Event {
	return Event{Name: name, Data: data}
}

// Encode renders the event as an Envelope stamped with the current time.
func (e Event) Encode() ([]byte, error) {
	var raw json.RawMessage
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{
		Event:     e.Name,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Decode unmarshals the envelope payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Publisher fans an event out to every connected participant.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
