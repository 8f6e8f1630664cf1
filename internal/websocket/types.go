package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType identifies the kind of review event being broadcast.
type EventType string

const (
	// EventTypeClassification is emitted for each field decision made
	// during a live analysis run.
	EventTypeClassification EventType = "classification"
	// EventTypeRunStatus is emitted when a run starts, finishes, or fails.
	EventTypeRunStatus EventType = "run_status"
	// EventTypeConnection is emitted when review clients come and go.
	EventTypeConnection EventType = "connection"
)

// Event is the envelope sent to review clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConnectionEvent describes a client joining or leaving.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage is an inbound message from a review client.
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client is one connected review UI session.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
}
