package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptExtractMessage asks the worker to extract structured fields from an
// uploaded receipt. It carries only the ids; the worker fetches the receipt
// record from the database.
type ReceiptExtractMessage struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReceiptExtractMessage creates a new extraction message
func NewReceiptExtractMessage(id, tripID string) *ReceiptExtractMessage {
	return &ReceiptExtractMessage{
		ID:        id,
		TripID:    tripID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReceiptExtractMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptExtractMessageFromJSON creates a message from JSON bytes
func ReceiptExtractMessageFromJSON(data []byte) (*ReceiptExtractMessage, error) {
	var msg ReceiptExtractMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errEmptyMessageID
	}
	return &msg, nil
}
