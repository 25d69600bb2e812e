package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Level is the severity attached to a log message
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

// Levels lists the recognized severities
var Levels = []Level{LevelInfo, LevelWarn, LevelError, LevelDebug}

// Known reports whether the level is one of the four recognized values.
// Unknown levels are still carried through the pipeline as-is.
func (l Level) Known() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError, LevelDebug:
		return true
	}
	return false
}

// ParseLevel normalizes user input such as "error" to ERROR.
// Unrecognized input is returned upper-cased rather than rejected.
func ParseLevel(s string) Level {
	return Level(strings.ToUpper(strings.TrimSpace(s)))
}

// ErrMalformedMessage is returned when a message body cannot be decoded into a LogMessage
var ErrMalformedMessage = errors.New("malformed log message")

var validate = validator.New()

// LogMessage is the JSON body producers publish to the log topics.
// Data is carried opaquely; its schema is agreed between producers and readers.
type LogMessage struct {
	Service string          `json:"service" validate:"required"`
	Action  string          `json:"action" validate:"required"`
	Data    json.RawMessage `json:"data,omitempty"`
	Level   Level           `json:"level,omitempty"`
}

// Validate checks required fields
func (m *LogMessage) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

// inboundMessage accepts any JSON object. The level is kept raw so that a
// non-string value is carried as its JSON text instead of failing the decode.
type inboundMessage struct {
	Service string          `json:"service"`
	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data"`
	Level   json.RawMessage `json:"level"`
}

// DecodeLogMessage parses a message body. Any JSON object is accepted;
// required fields are enforced only when encoding. A missing level defaults
// to INFO, matching what emitters send when the caller does not choose one.
func DecodeLogMessage(body []byte) (*LogMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedMessage)
	}

	var in inboundMessage
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := &LogMessage{
		Service: in.Service,
		Action:  in.Action,
		Data:    in.Data,
		Level:   rawLevel(in.Level),
	}
	if msg.Level == "" {
		msg.Level = LevelInfo
	}
	if string(msg.Data) == "null" {
		msg.Data = nil
	}
	return msg, nil
}

func rawLevel(raw json.RawMessage) Level {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Level(s)
	}
	return Level(raw)
}

// Encode serializes the message for publishing
func (m *LogMessage) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
