package runtime

import "strings"

// evalSkipPredicate evaluates a stage skip-condition against item attributes.
// Supported forms: "key=value" and "key!=value". An empty or malformed
// predicate never skips.
func evalSkipPredicate(expr string, attrs map[string]string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}

	if key, want, ok := strings.Cut(expr, "!="); ok {
		return attrs[strings.TrimSpace(key)] != strings.TrimSpace(want)
	}
	if key, want, ok := strings.Cut(expr, "="); ok {
		return attrs[strings.TrimSpace(key)] == strings.TrimSpace(want)
	}
	return false
}
