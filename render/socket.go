package render

import (
	"encoding/json"
	"github.com/paulmach/orb"
	"sync"
)

// Sender writes one message to a client. *melody.Session is a Sender.
type Sender interface {
	Write(msg []byte) error
}

// Command is one drawing instruction as sent over the wire.
type Command struct {
	Action      string         `json:"action"`
	Layer       Layer          `json:"layer,omitempty"`
	Marker      *Marker        `json:"marker,omitempty"`
	Coordinates orb.LineString `json:"coordinates,omitempty"`
	Position    *orb.Point     `json:"position,omitempty"`
}

// Command actions.
const (
	ActionAddMarker = "addMarker"
	ActionDrawPath  = "drawPath"
	ActionPanTo     = "panTo"
	ActionClear     = "clear"
)

// Socket sends drawing commands as JSON messages to a websocket client.
type Socket struct {
	mu     sync.Mutex
	sender Sender
}

func NewSocket(s Sender) *Socket {
	return &Socket{sender: s}
}

func (s *Socket) AddMarker(m Marker) error {
	return s.Send(Command{Action: ActionAddMarker, Layer: m.Layer, Marker: &m})
}

func (s *Socket) DrawPath(layer Layer, ls orb.LineString) error {
	if len(ls) == 0 {
		return nil
	}
	return s.Send(Command{Action: ActionDrawPath, Layer: layer, Coordinates: ls})
}

func (s *Socket) PanTo(p orb.Point) error {
	return s.Send(Command{Action: ActionPanTo, Position: &p})
}

func (s *Socket) Clear(layer Layer) error {
	return s.Send(Command{Action: ActionClear, Layer: layer})
}

// Send writes any JSON-encodable message to the client.
// Writes are serialized so messages are never interleaved.
func (s *Socket) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.Write(b)
}
