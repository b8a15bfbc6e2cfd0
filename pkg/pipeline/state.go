package pipeline

// State is one of the pipeline's lifecycle states.
type State uint32

const (
	Uninitialized State = iota
	Initialized
	Playing
	Paused
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// transitions enumerates the legal (from, to) edges of the state diagram,
// excluding Shutdown and the fatal-error edge, which are legal from every
// state and handled separately by their callers.
var transitions = map[State]map[State]bool{
	Uninitialized: {Initialized: true},
	Initialized:   {Playing: true},
	Playing:       {Paused: true, Stopped: true},
	Paused:        {Playing: true, Stopped: true},
	Stopped:       {Playing: true},
	Error:         {},
}

func canTransition(from, to State) bool {
	edges, ok := transitions[from]
	return ok && edges[to]
}
