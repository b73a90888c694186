package pathsync

// Plan is the ordered action list for one request. It is produced against
// the hypothetical post-state, so it can be executed as is or shown as a
// dry-run.
type Plan struct {
	Request SyncRequest
	RunID   string
	Actions []Action
}

// Changes returns the number of actions that would change the destination.
func (p *Plan) Changes() int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind.Mutates() {
			n++
		}
	}
	return n
}

// Count returns the number of actions of the given kind.
func (p *Plan) Count(kind ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Of returns the actions of the given kind in emission order.
func (p *Plan) Of(kind ActionKind) []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
