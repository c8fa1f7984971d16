package document

// Transitions is an explicit state machine: allowed[from] lists every legal target.
// States missing from the map, or mapped to an empty list, are terminal.
type Transitions[S comparable] map[S][]S

// Allows reports whether from -> to is in the table
func (t Transitions[S]) Allows(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets returns the legal targets from a state
func (t Transitions[S]) Targets(from S) []S {
	out := make([]S, len(t[from]))
	copy(out, t[from])
	return out
}

// IsTerminal reports whether no transition leaves the state
func (t Transitions[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}
