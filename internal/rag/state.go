package rag

// State is the pipeline lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateIndexed:
		return "indexed"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
