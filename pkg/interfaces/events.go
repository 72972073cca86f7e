package interfaces

// SessionState is the lifecycle controller's externally visible state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRestoring
	StateConnecting
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRestoring:
		return "restoring"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// EventSink receives user-visible notifications from the core. All
// methods are called from the client's processing goroutine and must
// not block. Implemented by the panel/UI layer; NopEvents for headless use.
type EventSink interface {
	// StateChanged fires on every lifecycle transition.
	StateChanged(state SessionState)
	// FatalNotice fires exactly once per session before teardown:
	// kicked, session ended, room missing/full, connect timeout.
	FatalNotice(reason, message string)
	// Warning fires for advisory faults: object limit, rate limit.
	Warning(message string)
	// CountdownTick reports seconds until auto-end while the admin is
	// absent; negative means the countdown was cleared.
	CountdownTick(secondsRemaining int)
	// BoardUpdated signals that the reconciled collections changed and
	// the rendering surface should redraw.
	BoardUpdated()
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) StateChanged(SessionState)  {}
func (NopEvents) FatalNotice(string, string) {}
func (NopEvents) Warning(string)             {}
func (NopEvents) CountdownTick(int)          {}
func (NopEvents) BoardUpdated()              {}
