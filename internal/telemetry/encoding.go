package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoder turns payloads into frames for a transport.
type Encoder interface {
	Name() string
	Encode(p Payload) ([]byte, error)
	// Decode reads a frame back into a generic map, for host-side tools.
	Decode(b []byte) (map[string]any, error)
}

// NewEncoder returns the encoder named "json" or "msgpack".
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown encoding %q", name)
	}
}

// JSON is the default encoding; it matches what the BLE dashboards expect.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("telemetry: marshal %T: %w", p, err)
	}
	return b, nil
}

func (JSON) Decode(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("telemetry: unmarshal json: %w", err)
	}
	return m, nil
}

// Msgpack is a compact binary encoding for bandwidth-limited links.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Encode(p Payload) ([]byte, error) {
	b, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("telemetry: marshal %T: %w", p, err)
	}
	return b, nil
}

func (Msgpack) Decode(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("telemetry: unmarshal msgpack: %w", err)
	}
	return m, nil
}
