// Package events fans run progress out to in-process subscribers.
package events

import (
	"encoding/json"
	"time"
)

// Event types published during a run.
const (
	TypeRunStarted          = "run_started"
	TypeApplicationStarted  = "application_started"
	TypeApplicationRecorded = "application_recorded"
	TypePlatformFinished    = "platform_finished"
	TypeRunFinished         = "run_finished"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MakeEvent stamps and wraps a payload. Rendering (JSON, log line) is the
// subscriber's business, not the hub's.
func MakeEvent(runID, typ string, v int, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:    typ,
		Version: v,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
}
