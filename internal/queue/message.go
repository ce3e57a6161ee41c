package queue

import (
	"encoding/json"
	"time"

	"wellness-backend/internal/protocols/engine"
)

// MessageVersion is the payload version written by this build.
const MessageVersion = 1

// Signal is the day's signal as carried on the wire. Stress stays a pointer so
// consumers can tell a missing value from zero.
type Signal struct {
	Stress  *float64 `json:"stress"`
	Overall *float64 `json:"overall,omitempty"`
	LIS     *float64 `json:"lis,omitempty"`
}

// Message asks a worker to generate one user's protocol for one day.
type Message struct {
	UserID       string               `json:"userId"`
	RequestID    string               `json:"requestId"`
	Day          string               `json:"day,omitempty"`
	Signal       Signal               `json:"signal"`
	CyclePhase   string               `json:"cyclePhase,omitempty"`
	UserMetadata *engine.UserMetadata `json:"userMetadata,omitempty"`
	EnqueuedAt   string               `json:"enqueuedAt"`
	Version      int                  `json:"version"`
}

// Stamp fills EnqueuedAt and Version when unset.
func (m Message) Stamp(now time.Time) Message {
	if m.EnqueuedAt == "" {
		m.EnqueuedAt = now.UTC().Format(time.RFC3339)
	}
	if m.Version == 0 {
		m.Version = MessageVersion
	}
	return m
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
