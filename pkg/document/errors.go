package document

import "fmt"

// NotFoundError reports that a document does not exist (or is tombstoned and
// the caller asked for live data). Read paths translate it to nil results.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %s not found", e.ID)
}

// ConflictError reports an optimistic-concurrency collision: the revision
// supplied with a write no longer matches the stored revision. Attempts is
// populated by retrying layers to report how many rounds were spent.
type ConflictError struct {
	ID       string
	Rev      string
	Attempts int
}

func (e *ConflictError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("document %s: revision conflict after %d attempts", e.ID, e.Attempts)
	}
	return fmt.Sprintf("document %s: revision conflict on %s", e.ID, e.Rev)
}

// ShapeError reports that a fetched document does not satisfy an invariant
// shape the caller depends on. List operations skip such records; single
// fetches surface the error.
type ShapeError struct {
	Doc    string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("document %s: malformed: %s", e.Doc, e.Reason)
}

// TransportError wraps network, timeout, and auth failures from a remote
// backend with enough context to log and alert. It is never retried silently
// outside the bounded retry policies of the calling layer.
type TransportError struct {
	Op  string
	ID  string
	Err error
}

func (e *TransportError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
