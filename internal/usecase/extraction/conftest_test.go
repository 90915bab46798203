package extraction

import (
	"testing"
	"time"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestExtractor(t *testing.T, opts Options) *Extractor {
	t.Helper()
	e, err := New(opts, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.now = func() time.Time { return fixedNow }
	return e
}

// ruleFunc adapts a function to RuleProvider.
type ruleFunc func(doc *domdoc.Document, triples []triple.Triple) []triple.Triple

func (f ruleFunc) Infer(doc *domdoc.Document, triples []triple.Triple) []triple.Triple {
	return f(doc, triples)
}

func find(triples []triple.Triple, predicate string) []triple.Triple {
	var out []triple.Triple
	for _, t := range triples {
		if t.PredicateValue() == predicate {
			out = append(out, t)
		}
	}
	return out
}

func findObject(triples []triple.Triple, predicate, object string) (triple.Triple, bool) {
	for _, t := range triples {
		if t.PredicateValue() == predicate && t.ObjectValue() == object {
			return t, true
		}
	}
	return triple.Triple{}, false
}
