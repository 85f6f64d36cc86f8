package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CorrectionMessage asks the worker to set the category of one transaction.
// ID is unique per message so redeliveries can be recognised.
type CorrectionMessage struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	CategoryID    string    `json:"category_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewCorrectionMessage creates a correction message with a fresh ID
func NewCorrectionMessage(txID, categoryID string) *CorrectionMessage {
	return &CorrectionMessage{
		ID:            uuid.NewString(),
		TransactionID: txID,
		CategoryID:    categoryID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CorrectionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CorrectionMessageFromJSON decodes and validates a message body
func CorrectionMessageFromJSON(data []byte) (*CorrectionMessage, error) {
	var msg CorrectionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("correction message: missing id")
	}
	if msg.TransactionID == "" {
		return nil, errors.New("correction message: missing transaction_id")
	}
	if msg.CategoryID == "" {
		return nil, errors.New("correction message: missing category_id")
	}
	return &msg, nil
}
