package session

// ActionClass is the granularity at which concurrent submission is guarded.
type ActionClass int

const (
	ActionPreview ActionClass = iota
	ActionStartAnalysis
	ActionReply

	numActionClasses
)

func (c ActionClass) String() string {
	switch c {
	case ActionPreview:
		return "preview"
	case ActionStartAnalysis:
		return "start-analysis"
	case ActionReply:
		return "reply"
	default:
		return "unknown"
	}
}

// Guard tracks one in-flight flag per action class. Classes are independent:
// a set preview flag never blocks a start-analysis attempt and vice versa.
// Guard is a value type; every method returns a new Guard.
type Guard struct {
	inFlight [numActionClasses]bool
}

// Busy reports whether a request of class c is outstanding.
func (g Guard) Busy(c ActionClass) bool {
	if c < 0 || c >= numActionClasses {
		return false
	}
	return g.inFlight[c]
}

// Acquire sets the flag for c. It returns false, and the guard unchanged,
// when a request of that class is already outstanding.
func (g Guard) Acquire(c ActionClass) (Guard, bool) {
	if c < 0 || c >= numActionClasses || g.inFlight[c] {
		return g, false
	}
	g.inFlight[c] = true
	return g, true
}

// Release clears the flag for c unconditionally.
func (g Guard) Release(c ActionClass) Guard {
	if c >= 0 && c < numActionClasses {
		g.inFlight[c] = false
	}
	return g
}

// Any reports whether any class has a request outstanding.
func (g Guard) Any() bool {
	for _, busy := range g.inFlight {
		if busy {
			return true
		}
	}
	return false
}
