// Package hub fans live posture events out to websocket subscribers using
// channel-based register/unregister/broadcast.
package hub

import (
	"encoding/json"
	"time"
)

// EventType names what an Event carries.
type EventType string

const (
	// EventFrame carries the result of one processed frame.
	EventFrame EventType = "frame"
	// EventAlert is sent when a bad-posture alert fires.
	EventAlert EventType = "alert"
	// EventSession is sent when a session starts or stops.
	EventSession EventType = "session"
	// EventConnectivity reports remote store reachability.
	EventConnectivity EventType = "connectivity"
)

// Event is the JSON envelope written to subscribers.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Message is an encoded event queued for delivery.
type Message struct {
	Data []byte
}

// Encode marshals an event into a Message.
func Encode(ev Event) (Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}

// Connectivity is the payload of EventConnectivity.
type Connectivity struct {
	Connected bool   `json:"connected"`
	Remote    string `json:"remote"`
}
