package model

import (
	"encoding/json"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
)

// Document is the shape a LogRecord takes in the search index
type Document struct {
	ID        string          `json:"id"`
	Service   string          `json:"service"`
	Action    string          `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
	Level     events.Level    `json:"level"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message"`
}

// ToDocument converts a record for indexing
func (r LogRecord) ToDocument() Document {
	return Document{
		ID:        r.ID,
		Service:   r.Service,
		Action:    r.Action,
		Timestamp: r.Timestamp,
		Level:     r.Level,
		Data:      r.Data,
		Message:   r.Message(),
	}
}

// Record converts an indexed document back into a LogRecord
func (d Document) Record() LogRecord {
	return LogRecord{
		ID:        d.ID,
		Service:   d.Service,
		Action:    d.Action,
		Level:     d.Level,
		Timestamp: d.Timestamp,
		Data:      d.Data,
	}
}
