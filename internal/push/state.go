package push

// State is the lifecycle of a push connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Live reports whether a connection attempt or open connection exists.
func (s State) Live() bool {
	return s == Connecting || s == Connected
}

// canTransition lists the legal state changes.
func canTransition(from, to State) bool {
	switch {
	case from == Disconnected && to == Connecting:
		return true
	case from == Connecting && to == Connected:
		return true
	case from == Connecting && to == Disconnected:
		return true
	case from == Connected && to == Disconnected:
		return true
	}
	return false
}
