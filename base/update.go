package base

// SessionState is the state of a streaming session
type SessionState int32

// Session states, the last three are terminal
const (
	StateIdle SessionState = iota
	StateConnecting
	StateStreaming
	StateDraining
	StateCancelled
	StateFailed
)

var sessionStateNames = [...]string{"idle", "connecting", "streaming", "draining", "cancelled", "failed"}

func (state SessionState) String() string {
	if state < 0 || int(state) >= len(sessionStateNames) {
		return "unknown"
	}
	return sessionStateNames[state]
}

// IsTerminal returns true if no further transition can happen from this state
func (state SessionState) IsTerminal() bool {
	return state >= StateDraining
}

// Update is published by a session each time its buffer changes or it reaches a terminal state
//
// Entries is the whole buffer at the time of publishing, not a delta. Err is only set with StateFailed.
type Update struct {
	Key     SessionKey
	QueryID string
	Entries []BufferEntry
	State   SessionState
	Err     error
}

// IsTerminal returns true if this is the last update of the session
func (update Update) IsTerminal() bool {
	return update.State.IsTerminal()
}
