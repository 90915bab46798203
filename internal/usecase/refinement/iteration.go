package refinement

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	domref "github.com/kailas-cloud/consolidator/internal/domain/refinement"
	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// Confidence model of neighbor voting.
const (
	BaseConfidence    = 0.65
	ShareWeight       = 0.27
	CategoryBonus     = 0.03
	MaxConfidence     = 0.95
	CategoryContext   = 0.3
	AnalysisContext   = 0.2
	AnnotationContext = 0.2
)

type iterationResult struct {
	snap             domref.Process
	builtinConverged bool
}

// iterate runs one refinement step. alive is false when the process was stopped meanwhile;
// the step's results are then discarded.
func (o *Orchestrator) iterate(p *proc) (iterationResult, bool, error) {
	o.mu.Lock()
	if o.active[p.DocumentID] != p {
		o.mu.Unlock()
		return iterationResult{}, false, nil
	}
	p.Iteration++
	iter := p.Iteration
	o.mu.Unlock()

	ctx := o.ctx
	id := p.DocumentID
	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		return iterationResult{}, false, &domain.RefinementError{DocumentID: id, Iteration: iter, Err: fmt.Errorf("load document: %w", err)}
	}

	contextConfidence := o.contextConfidence(ctx, &doc)
	vote, err := o.refine(ctx, &doc, p.opts)
	if err != nil {
		return iterationResult{}, false, &domain.RefinementError{DocumentID: id, Iteration: iter, Err: err}
	}

	o.mu.Lock()
	alive := o.active[id] == p
	o.mu.Unlock()
	if !alive {
		return iterationResult{}, false, nil
	}

	now := o.now()
	analysis := domdoc.Analysis{Type: vote.analysisType, Confidence: vote.confidence, RefinedAt: now}
	if _, err := o.docs.UpdateAnalysis(ctx, id, analysis); err != nil {
		return iterationResult{}, false, &domain.RefinementError{DocumentID: id, Iteration: iter, Err: fmt.Errorf("write back: %w", err)}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// остановка после записи: запись остаётся, результат итерации отбрасывается
	if o.active[id] != p {
		return iterationResult{}, false, nil
	}
	prev := p.CurrentConfidence
	p.CurrentConfidence = vote.confidence
	p.AnalysisType = vote.analysisType
	p.ContextConfidence = contextConfidence
	p.ConfidenceHistory = append(p.ConfidenceHistory, vote.confidence)
	o.recordHistoryLocked(id, domref.HistoryEntry{
		Confidence:   vote.confidence,
		AnalysisType: vote.analysisType,
		Iteration:    iter,
		At:           now,
	})

	gain := vote.confidence - prev
	graced := o.inGraceLocked(id, iter, p.opts)
	o.logger.Debug("Refinement iteration",
		zap.String("document_id", id),
		zap.Int("iteration", iter),
		zap.String("analysis_type", vote.analysisType),
		zap.Float64("confidence", vote.confidence),
		zap.Float64("gain", gain),
		zap.Int("neighbors", vote.neighbors),
		zap.Float64("context_confidence", contextConfidence),
		zap.Bool("grace", graced),
	)
	return iterationResult{
		snap:             p.snapshot(),
		builtinConverged: gain < p.opts.minConfidenceGain() && vote.confidence >= p.opts.ConvergenceThreshold && !graced,
	}, true, nil
}

func (o *Orchestrator) recordHistoryLocked(docID string, e domref.HistoryEntry) {
	h := append(o.history[docID], e)
	if len(h) > DefaultHistoryLimit {
		h = h[len(h)-DefaultHistoryLimit:]
	}
	o.history[docID] = h
}

// inGraceLocked reports whether a recent context change keeps an early iteration going.
func (o *Orchestrator) inGraceLocked(docID string, iteration int, opts Options) bool {
	changed, ok := o.contextChanged[docID]
	if !ok || iteration >= opts.GraceIterations {
		return false
	}
	return o.now().Sub(changed) < opts.GraceWindow
}

// contextConfidence scores the curated context available for a document, capped at 1.
func (o *Orchestrator) contextConfidence(ctx context.Context, doc *domdoc.Document) float64 {
	var c float64
	if len(doc.Categories) > 0 {
		c += CategoryContext
	}
	if doc.AnalysisType != "" || o.hasSemanticSignals(doc.ID) {
		c += AnalysisContext
	}
	if len(doc.Annotations) > 0 {
		c += AnnotationContext
	}
	for _, d := range o.detectors {
		for _, s := range d.Detect(ctx, doc) {
			c += s.Confidence
		}
	}
	return math.Min(1, c)
}

func (o *Orchestrator) hasSemanticSignals(docID string) bool {
	if o.triples == nil {
		return false
	}
	for _, t := range o.triples.Relationships(docID) {
		if t.SubjectValue() != docID {
			continue
		}
		if p := t.PredicateValue(); p == triple.HasInsight || p == triple.WasAnalyzedAs {
			return true
		}
	}
	return false
}

type voteResult struct {
	analysisType string
	confidence   float64
	neighbors    int
}

// refine votes on the analysis type among category-sharing neighbors.
// Without neighbors the type is kept and confidence stays at the base.
func (o *Orchestrator) refine(ctx context.Context, doc *domdoc.Document, opts Options) (voteResult, error) {
	base := voteResult{analysisType: doc.AnalysisType, confidence: BaseConfidence}
	if len(doc.Categories) == 0 {
		return base, nil
	}

	emb, err := o.embedder.Embed(ctx, doc.EmbeddingText())
	if err != nil {
		return voteResult{}, fmt.Errorf("embed document: %w", err)
	}
	hits, err := o.searcher.Search(ctx, emb.Embedding, domain.SearchOptions{
		Limit:          opts.NeighborLimit,
		ScoreThreshold: opts.NeighborScoreThreshold,
		Filter:         filter.AnyOf(domdoc.PayloadCategories, doc.Categories, domdoc.PayloadDocumentID, doc.ID),
	})
	if err != nil {
		return voteResult{}, fmt.Errorf("search neighbors: %w", err)
	}

	winner, share, n := Vote(hits, doc.ID)
	if n == 0 {
		return base, nil
	}
	return voteResult{
		analysisType: winner,
		confidence:   RefinedConfidence(share, len(doc.Categories)),
		neighbors:    n,
	}, nil
}

// Vote tallies neighbor analysis types weighted by each neighbor's confidence, falling back
// to its similarity score. It returns the winning type, its share of the total weight and
// the number of voting neighbors. Ties go to the type seen first.
func Vote(hits []domain.ScoredPoint, selfID string) (string, float64, int) {
	weights := make(map[string]float64)
	var order []string
	var total float64
	n := 0
	for _, h := range hits {
		id := domain.PayloadString(h.Payload, domdoc.PayloadDocumentID)
		if id == "" {
			id = h.ID
		}
		if id == selfID {
			continue
		}
		typ := domain.PayloadString(h.Payload, domdoc.PayloadAnalysisType)
		if typ == "" {
			continue
		}
		w, ok := domain.PayloadFloat(h.Payload, domdoc.PayloadAnalysisConfidence)
		if !ok || w <= 0 {
			w = h.Score
		}
		if w <= 0 {
			continue
		}
		if _, seen := weights[typ]; !seen {
			order = append(order, typ)
		}
		weights[typ] += w
		total += w
		n++
	}
	if n == 0 {
		return "", 0, 0
	}

	best := order[0]
	for _, typ := range order[1:] {
		if weights[typ] > weights[best] {
			best = typ
		}
	}
	return best, weights[best] / total, n
}

// RefinedConfidence is min(0.95, 0.65 + 0.27*share + 0.03*categories).
func RefinedConfidence(share float64, categories int) float64 {
	c := BaseConfidence + ShareWeight*share + CategoryBonus*float64(categories)
	return math.Round(math.Min(MaxConfidence, c)*10000) / 10000
}
