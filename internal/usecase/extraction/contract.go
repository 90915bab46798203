package extraction

import (
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// RuleProvider supplies external inference rules applied after the built-in pass.
// Returned triples are appended to the document's triple set.
type RuleProvider interface {
	Infer(doc *domdoc.Document, triples []triple.Triple) []triple.Triple
}
