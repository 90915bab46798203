// Package batch describes per-item outcomes of batch operations.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one document in a batch.
// A failed item never aborts the batch.
type Result struct {
	id      string
	status  ItemStatus
	triples int
	err     error
}

// NewOK creates a successful result carrying the number of triples produced.
func NewOK(id string, triples int) Result {
	return Result{id: id, status: StatusOK, triples: triples}
}

// NewError creates a failed batch result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Triples returns how many triples the item produced.
func (r Result) Triples() int { return r.triples }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary counts outcomes across results.
func Summary(results []Result) (ok, failed int) {
	for _, r := range results {
		if r.status == StatusOK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
