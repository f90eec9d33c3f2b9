package resolver

import "github.com/stagecoach-io/stagecoach/pkg/schema"

// merge layers a child document over its resolved base. The rule is
// override-by-id: a child element with a parent element's id replaces it
// entirely (no field-level merge); new ids are appended in child order.
// Transitions without an id cannot be overridden and are always appended.
func merge(base, child *schema.Document) *schema.Document {
	out := &schema.Document{
		Team: child.Team,
	}

	out.Stages = mergeByID(base.Stages, child.Stages,
		func(d schema.StageDef) string { return d.ID })
	out.Statuses = mergeByID(base.Statuses, child.Statuses,
		func(d schema.StatusDef) string { return d.ID })
	out.Transitions = mergeByID(base.Transitions, child.Transitions,
		func(d schema.TransitionDef) string { return d.ID })
	out.ComplexityLevels = mergeByID(base.ComplexityLevels, child.ComplexityLevels,
		func(d schema.ComplexityDef) string { return d.ID })
	out.AutomationRules = mergeByID(base.AutomationRules, child.AutomationRules,
		func(d schema.RuleDef) string { return d.ID })

	return out
}

// mergeByID keeps parent ordering, replaces in place on id collision, and
// appends child elements with new (or empty) ids.
func mergeByID[T any](parent, child []T, id func(T) string) []T {
	out := append([]T(nil), parent...)

	index := make(map[string]int, len(out))
	for i, e := range out {
		if key := id(e); key != "" {
			index[key] = i
		}
	}

	for _, e := range child {
		key := id(e)
		if key != "" {
			if i, ok := index[key]; ok {
				out[i] = e
				continue
			}
			index[key] = len(out)
		}
		out = append(out, e)
	}

	return out
}
