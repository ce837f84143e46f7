package qb

import "fmt"

// BuildError reports a statement that cannot be rendered, usually a
// programming error in the caller.
type BuildError struct {
	Op     Operation
	Reason string
}

func (e *BuildError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("qb: %s", e.Reason)
	}
	return fmt.Sprintf("qb: cannot build %s: %s", e.Op, e.Reason)
}
