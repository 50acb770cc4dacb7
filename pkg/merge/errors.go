package merge

import (
	"fmt"
)

// MalformedFragmentError reports a fragment that was skipped because it lacks its
// node or link sequence.
type MalformedFragmentError struct {
	Index int    // Position in the input sequence
	Name  string // Fragment name, if known
	Err   error
}

func (e *MalformedFragmentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("dataset %d (%s) skipped: %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("dataset %d skipped: %v", e.Index, e.Err)
}

func (e *MalformedFragmentError) Unwrap() error { return e.Err }

// InvalidEntryError reports a single node or link that was ignored.
type InvalidEntryError struct {
	Fragment int
	Kind     string // "node" or "link"
	Value    string
	Reason   string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("dataset %d: ignoring %s %q: %s", e.Fragment, e.Kind, e.Value, e.Reason)
}
