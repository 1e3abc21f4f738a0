package domain

// FSMState is the meeting lifecycle as seen by the local client.
type FSMState int

const (
	StateIdle FSMState = iota
	StateRinging
	StateJoining
	StateJoined
	StateLeft
	StateInactive
)

func (s FSMState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRinging:
		return "ringing"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// transitions lists every legal edge. JOINING may fall back to where it came
// from when the join attempt fails.
var transitions = map[FSMState][]FSMState{
	StateIdle:     {StateRinging, StateJoining, StateInactive},
	StateRinging:  {StateJoining, StateLeft, StateInactive},
	StateJoining:  {StateJoined, StateIdle, StateRinging, StateLeft, StateInactive},
	StateJoined:   {StateLeft, StateInactive},
	StateLeft:     {StateJoining, StateInactive},
	StateInactive: {StateJoining},
}

func CanTransition(from, to FSMState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
