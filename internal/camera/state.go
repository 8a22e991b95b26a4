package camera

import "fmt"

// State is the lifecycle position of a Handle. States are ordered, so
// "at least configured" is state >= StateConfigured.
type State int

// Handle states.
const (
	StateAvailable State = iota
	StateAcquired
	StateConfigured
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateAcquired:
		return "acquired"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
