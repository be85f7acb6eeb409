package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by ExpenseChangedMessage.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseChangedMessage announces that the expense collection changed.
// It carries ids only; consumers re-read the collection.
type ExpenseChangedMessage struct {
	Action    string    `json:"action"`
	IDs       []string  `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage stamps a change notification with the current time.
func NewExpenseChangedMessage(action string, ids ...string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Action:    action,
		IDs:       ids,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes a message body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
