package refinement

import (
	"time"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// HasPotential reports whether a document is worth refining: a rich preview,
// relevance above 0.3 or a size typical of a text document.
func HasPotential(doc *domdoc.Document) bool {
	if len([]rune(doc.Preview)) > PotentialPreviewLen {
		return true
	}
	if doc.NormalizedRelevance() > PotentialRelevance {
		return true
	}
	return doc.Size >= PotentialMinSize && doc.Size <= PotentialMaxSize
}

// OnDocumentAnalyzed starts refinement for a freshly analyzed, low-confidence document
// with potential. It reports whether a process was started.
func (o *Orchestrator) OnDocumentAnalyzed(doc domdoc.Document) bool {
	if doc.AnalysisConfidence >= TriggerConfidence || !HasPotential(&doc) {
		return false
	}
	_, started, err := o.Start(doc.ID, Options{})
	if err != nil {
		o.logger.Warn("Automatic refinement not started",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		return false
	}
	return started
}

// OnCategoriesChanged records a context change and re-triggers refinement after the
// re-trigger delay. Changes inside the delay collapse into one run.
func (o *Orchestrator) OnCategoriesChanged(docID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.contextChanged[docID] = o.now()
	if t, ok := o.retrigger[docID]; ok {
		t.Stop()
	}
	o.retriggerSeq[docID]++
	seq := o.retriggerSeq[docID]
	o.retrigger[docID] = time.AfterFunc(o.queueOpts.RetriggerDelay, func() {
		o.mu.Lock()
		if o.retriggerSeq[docID] != seq || o.closed {
			o.mu.Unlock()
			return
		}
		delete(o.retrigger, docID)
		o.mu.Unlock()

		if _, _, err := o.Start(docID, Options{}); err != nil {
			o.logger.Warn("Category re-trigger failed",
				zap.String("document_id", docID),
				zap.Error(err),
			)
		}
	})
}
