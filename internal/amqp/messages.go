package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChangeMessage announces that a collection was modified. It carries no
// records; consumers re-read the collection if they need its contents.
type ChangeMessage struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a message with a fresh ID
func NewChangeMessage(collection string) *ChangeMessage {
	return &ChangeMessage{
		ID:         uuid.NewString(),
		Collection: collection,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" {
		return nil, errors.New("change message without collection")
	}
	return &msg, nil
}
