package model

import (
	"encoding/json"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/google/uuid"
)

// LogRecord is one ingested event. It is created once, when the consumer
// decodes a transport message, and never mutated afterwards.
type LogRecord struct {
	ID        string          `json:"id"`
	Service   string          `json:"service"`
	Action    string          `json:"action"`
	Level     events.Level    `json:"level"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewLogRecord assigns identity and arrival time to a decoded message.
// Identity comes from the consumer, so a redelivered message yields a distinct record.
func NewLogRecord(msg *events.LogMessage, receivedAt time.Time) LogRecord {
	return LogRecord{
		ID:        uuid.NewString(),
		Service:   msg.Service,
		Action:    msg.Action,
		Level:     msg.Level,
		Timestamp: receivedAt.UTC(),
		Data:      msg.Data,
	}
}

// Message is the human readable summary indexed as full text
func (r LogRecord) Message() string {
	return r.Service + ": " + r.Action
}
