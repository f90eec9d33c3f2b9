package domain

// Wildcard is the "any status" marker usable in a Transition's From set.
const Wildcard = "*"

// Transition defines allowed edges between statuses. From may contain the
// Wildcard, in which case the edge set is every declared status minus Except.
type Transition struct {
	From   []string `json:"from"`
	To     []string `json:"to"`
	Except []string `json:"except,omitempty"`
}

// FromAny reports whether the transition's source set is the wildcard.
func (t Transition) FromAny() bool {
	for _, f := range t.From {
		if f == Wildcard {
			return true
		}
	}
	return false
}

// ExpandEdges flattens a transition list into a concrete edge table
// (from -> set of legal destinations). Wildcard sources expand to every
// status in statusIDs minus the transition's Except set and minus the
// destinations themselves.
func ExpandEdges(transitions []Transition, statusIDs []string) map[string]map[string]bool {
	table := make(map[string]map[string]bool)

	add := func(from, to string) {
		if table[from] == nil {
			table[from] = make(map[string]bool)
		}
		table[from][to] = true
	}

	for _, t := range transitions {
		if t.FromAny() {
			excluded := make(map[string]bool, len(t.Except)+len(t.To))
			for _, e := range t.Except {
				excluded[e] = true
			}
			// A wildcard edge never introduces self-loops; those must be
			// declared explicitly.
			for _, to := range t.To {
				excluded[to] = true
			}
			for _, from := range statusIDs {
				if excluded[from] {
					continue
				}
				for _, to := range t.To {
					add(from, to)
				}
			}
			continue
		}
		for _, from := range t.From {
			for _, to := range t.To {
				add(from, to)
			}
		}
	}

	return table
}
