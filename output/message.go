// Package output encodes session updates for subscribers
package output

import (
	"time"

	"github.com/relex/streamchart/base"
)

// Message is the wire form of one update
type Message struct {
	PanelID int64          `json:"panelId" msgpack:"panelId"`
	QueryID string         `json:"queryId" msgpack:"queryId"`
	State   string         `json:"state" msgpack:"state"`
	Error   string         `json:"error,omitempty" msgpack:"error,omitempty"`
	Entries []MessageEntry `json:"entries" msgpack:"entries"`
}

// MessageEntry is one buffer entry with timestamp in epoch milliseconds
type MessageEntry struct {
	Time   int64     `json:"t" msgpack:"t"`
	Values []float64 `json:"v" msgpack:"v"`
}

// NewMessage converts an update to Message
func NewMessage(update base.Update) Message {
	msg := Message{
		PanelID: update.Key.PanelID,
		QueryID: update.QueryID,
		State:   update.State.String(),
		Entries: make([]MessageEntry, len(update.Entries)),
	}
	if update.Err != nil {
		msg.Error = update.Err.Error()
	}
	for i, entry := range update.Entries {
		msg.Entries[i] = MessageEntry{
			Time:   entry.Timestamp.UnixMilli(),
			Values: entry.Values,
		}
	}
	return msg
}

// EntryTime converts the epoch milliseconds of entry back to time
func (entry MessageEntry) EntryTime() time.Time {
	return time.UnixMilli(entry.Time)
}
