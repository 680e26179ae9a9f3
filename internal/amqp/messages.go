package amqp

import (
	"encoding/json"
	"time"
)

// ChangeMessage announces that an owner's bucket or collection changed.
// Consumers fetch the data themselves; the message carries no records.
type ChangeMessage struct {
	Owner     string    `json:"owner"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change message stamped with the current time.
func NewChangeMessage(owner, kind, key string, version int64) *ChangeMessage {
	return &ChangeMessage{
		Owner:     owner,
		Kind:      kind,
		Key:       key,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is "<kind>.<owner>" so consumers can bind per kind.
func (m *ChangeMessage) RoutingKey() string {
	return m.Kind + "." + m.Owner
}

// ToJSON converts the message to JSON bytes.
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
