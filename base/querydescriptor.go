package base

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// QueryDescriptor describes one visualization query to be streamed
//
// A descriptor is immutable once submitted. TimeRange and MaxPoints are optional pass-through parameters for the
// producer; older producers ignore them.
type QueryDescriptor struct {
	QueryID   string     `yaml:"queryId" json:"queryId"`
	PanelID   int64      `yaml:"panelId" json:"panelId"`
	Fields    []string   `yaml:"fields" json:"fields"`
	TimeRange *TimeRange `yaml:"timeRange,omitempty" json:"timeRange,omitempty"`
	MaxPoints int        `yaml:"maxPoints,omitempty" json:"maxPoints,omitempty"` // 0 = not supplied
}

// TimeRange is the time window of a query
type TimeRange struct {
	From time.Time `yaml:"from" json:"from"`
	To   time.Time `yaml:"to" json:"to"`
}

// SessionKey identifies a streaming session by panel and query
type SessionKey struct {
	PanelID int64
	QueryID string
}

// Key returns the session key of this descriptor
func (desc QueryDescriptor) Key() SessionKey {
	return SessionKey{PanelID: desc.PanelID, QueryID: desc.QueryID}
}

// Verify checks the descriptor for missing or conflicting properties
func (desc QueryDescriptor) Verify() error {
	if len(desc.QueryID) == 0 {
		return fmt.Errorf(".queryId is empty")
	}
	if len(desc.Fields) == 0 {
		return fmt.Errorf(".fields is empty")
	}
	for i, name := range desc.Fields {
		if len(name) == 0 {
			return fmt.Errorf(".fields[%d] is empty", i)
		}
		if strings.ContainsRune(name, ',') {
			return fmt.Errorf(".fields[%d] contains comma: '%s'", i, name)
		}
		if slices.Index(desc.Fields, name) != i {
			return fmt.Errorf(".fields[%d] is duplicated: '%s'", i, name)
		}
	}
	if tr := desc.TimeRange; tr != nil && tr.To.Before(tr.From) {
		return fmt.Errorf(".timeRange ends (%s) before start (%s)", tr.To.Format(time.RFC3339), tr.From.Format(time.RFC3339))
	}
	if desc.MaxPoints < 0 {
		return fmt.Errorf(".maxPoints is negative: %d", desc.MaxPoints)
	}
	return nil
}

// String returns the key in the form of "panelId/queryId"
func (key SessionKey) String() string {
	return strconv.FormatInt(key.PanelID, 10) + "/" + key.QueryID
}

// Matches checks whether a record carries the correlation identifiers of this key
func (key SessionKey) Matches(record Record) bool {
	return record.PanelID == key.PanelID && record.RefID == key.QueryID
}

// ParseSessionKey parses a key in the form of "panelId/queryId"
func ParseSessionKey(s string) (SessionKey, error) {
	panel, query, found := strings.Cut(s, "/")
	if !found {
		return SessionKey{}, fmt.Errorf("missing '/' in session key '%s'", s)
	}
	panelID, err := strconv.ParseInt(panel, 10, 64)
	if err != nil {
		return SessionKey{}, fmt.Errorf("invalid panel ID in session key '%s': %w", s, err)
	}
	return SessionKey{PanelID: panelID, QueryID: query}, nil
}
