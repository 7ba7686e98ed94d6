package dag

import "fmt"

// Kind identifies the category of a dag error, per spec §7.
type Kind string

const (
	KindIO             Kind = "IoError"
	KindFormat         Kind = "FormatError"
	KindHashMismatch   Kind = "HashMismatch"
	KindMerkleMismatch Kind = "MerkleMismatch"
	KindLinkMismatch   Kind = "LinkMismatch"
	KindProofInvalid   Kind = "ProofInvalid"
	KindOrphanLeaf     Kind = "OrphanLeaf"
	KindCycleDetected  Kind = "CycleDetected"
	KindUnknownParent  Kind = "UnknownParent"
	KindLabelsMissing  Kind = "LabelsMissing"
)

// Error is the error type returned by every verification, construction and
// transmission-assembly failure. CID is the offending leaf's identifier
// where one is known; it is empty when the failure predates any leaf
// existing (e.g. a truncated buffer).
type Error struct {
	Kind Kind
	CID  string
	Err  error
}

func (e *Error) Error() string {
	if e.CID == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.CID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.CID)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, dag.Sentinel(dag.KindX)) style checks: it
// matches any *Error carrying the same Kind (see Sentinel below).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, cid string, err error) *Error {
	return &Error{Kind: kind, CID: cid, Err: err}
}

// Sentinel returns a bare *Error carrying only a Kind, suitable as the
// target of errors.Is(err, dag.Sentinel(dag.KindHashMismatch)).
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}
