package schema

import "fmt"

// ResolutionErrorKind classifies failures while expanding a document.
type ResolutionErrorKind string

const (
	// UnknownBase means the `extends` target could not be found.
	UnknownBase ResolutionErrorKind = "UnknownBase"
	// UnknownFragment means a `$ref` target could not be found.
	UnknownFragment ResolutionErrorKind = "UnknownFragment"
	// CircularExtends means the `extends` chain revisits a document.
	CircularExtends ResolutionErrorKind = "CircularExtends"
	// CircularFragment means `$ref` expansion revisits a fragment.
	CircularFragment ResolutionErrorKind = "CircularFragment"
)

// ResolutionError reports one failure during extends/$ref expansion.
// Resolution errors are fatal to loading a team's config.
type ResolutionError struct {
	Kind ResolutionErrorKind
	Ref  string   // the unresolvable or revisited reference
	Path []string // the visiting chain that led here
}

func (e *ResolutionError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %q (via %v)", e.Kind, e.Ref, e.Path)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Ref)
}

// IssueKind classifies validator findings on a merged document.
type IssueKind string

const (
	// UnknownStage: a status references an undeclared stage.
	UnknownStage IssueKind = "UnknownStage"
	// UnknownStatus: a transition endpoint references an undeclared status.
	UnknownStatus IssueKind = "UnknownStatus"
	// UnreachableStart: the designated start status is the target of a
	// transition, so it is not a proper start. Advisory, not fatal.
	UnreachableStart IssueKind = "UnreachableStart"
	// InvalidTerminalEdge: a terminal stage's status has an outgoing edge to
	// a non-terminal status.
	InvalidTerminalEdge IssueKind = "InvalidTerminalEdge"
	// UnknownStageRef: a complexity level references an undeclared stage.
	UnknownStageRef IssueKind = "UnknownStageRef"
	// UnknownStatusRef: an automation rule references an undeclared status.
	UnknownStatusRef IssueKind = "UnknownStatusRef"
)

// Issue is a single validator finding. Advisory issues do not block
// activation.
type Issue struct {
	Kind     IssueKind
	Element  string // id of the offending element
	Detail   string
	Advisory bool
}

func (e *Issue) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Element, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Element)
}

// AggregateError collects multiple resolution or validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Issues returns all validator findings if err is an AggregateError of
// issues. Otherwise returns nil.
func Issues(err error) []*Issue {
	aggr, ok := err.(*AggregateError)
	if !ok {
		return nil
	}
	var out []*Issue
	for _, e := range aggr.Errors {
		if issue, ok := e.(*Issue); ok {
			out = append(out, issue)
		}
	}
	return out
}
