// Package wsserver streams engine events to overlay clients over a local
// WebSocket.
//
// # Frame protocol
//
// Server to client, text frames:
//
//	{"topic":"macro","event":"macro:started","payload":{...},"at":"2026-01-02T15:04:05Z"}
//	{"type":"error","message":"..."}
//
// Client to server, text frames:
//
//	{"action":"subscribe","topics":["macro","engine"]}
//	{"action":"unsubscribe","topics":["macro"]}
//
// The topic of an event is the part of its name before the first ':'
// ("macro:started" -> "macro"); names without ':' are their own topic. The
// topic "*" matches every event.
package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// WildcardTopic subscribes a client to every event.
const WildcardTopic = "*"

// Envelope is one event frame.
type Envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// nowFn is a test seam for envelope timestamps.
var nowFn = func() time.Time { return time.Now().UTC() }

// TopicOf returns the subscription topic for an event name.
func TopicOf(event string) string {
	event = strings.TrimSpace(event)
	if topic, _, ok := strings.Cut(event, ":"); ok && topic != "" {
		return topic
	}
	return event
}

// EncodeEvent builds the JSON frame for an event. A nil payload is omitted.
func EncodeEvent(event string, payload any) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, errors.New("wsserver: encode event: name must not be empty")
	}
	env := Envelope{Topic: TopicOf(event), Event: event, At: nowFn()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wsserver: encode event %q: %w", event, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// DecodeEvent parses a frame produced by EncodeEvent.
func DecodeEvent(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("wsserver: decode event: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, errors.New("wsserver: decode event: missing event name")
	}
	return env, nil
}
