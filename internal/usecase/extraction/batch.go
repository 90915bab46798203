package extraction

import (
	"context"
	"math"
	"runtime"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dombatch "github.com/kailas-cloud/consolidator/internal/domain/batch"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// TemporalWindow is the maximum gap between adjacent documents that follow each other.
const TemporalWindow = 7 * 24 * time.Hour

// BatchOutput is the outcome of a batch extraction.
// Results holds one entry per input document, in input order.
type BatchOutput struct {
	Triples []triple.Triple
	Results []dombatch.Result
}

// ExtractFromDocuments extracts every document and adds cross-document triples.
// A failing document is reported in Results and never aborts the batch.
func (e *Extractor) ExtractFromDocuments(ctx context.Context, docs []domdoc.Document) BatchOutput {
	perDoc := make([][]triple.Triple, len(docs))
	results := make([]dombatch.Result, len(docs))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range docs {
		g.Go(func() error {
			triples, err := e.ExtractFromDocument(ctx, &docs[i])
			if err != nil {
				e.logger.Warn("Document extraction failed",
					zap.String("document_id", docs[i].ID),
					zap.Error(err),
				)
				results[i] = dombatch.NewError(docs[i].ID, err)
				return nil
			}
			perDoc[i] = triples
			results[i] = dombatch.NewOK(docs[i].ID, len(triples))
			return nil
		})
	}
	_ = g.Wait()

	var out BatchOutput
	out.Results = results
	extracted := make([]*domdoc.Document, 0, len(docs))
	for i := range docs {
		if results[i].Err() != nil {
			continue
		}
		out.Triples = append(out.Triples, perDoc[i]...)
		extracted = append(extracted, &docs[i])
	}

	cross := e.crossDocument(extracted)
	for _, t := range cross {
		metrics.TriplesExtractedTotal.WithLabelValues(t.Metadata.Source).Inc()
	}
	out.Triples = append(out.Triples, cross...)

	ok, failed := dombatch.Summary(results)
	e.logger.Info("Batch extraction completed",
		zap.Int("documents", len(docs)),
		zap.Int("ok", ok),
		zap.Int("failed", failed),
		zap.Int("triples", len(out.Triples)),
		zap.Int("cross_document", len(cross)),
	)
	return out
}

func (e *Extractor) crossDocument(docs []*domdoc.Document) []triple.Triple {
	now := e.now().UTC()
	var out []triple.Triple

	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			shared := sharedCategories(docs[i].Categories, docs[j].Categories)
			if len(shared) == 0 {
				continue
			}
			md := triple.Metadata{
				Source:     triple.SourceCrossDoc,
				Confidence: 0.9,
				Timestamp:  now,
				Fields:     map[string]any{"categories": shared},
			}
			out = append(out, triple.New(docs[i].ID, triple.SharesCategoryWith, docs[j].ID, md))
		}
	}

	dated := make([]*domdoc.Document, 0, len(docs))
	for _, d := range docs {
		if !d.ModifiedAt.IsZero() {
			dated = append(dated, d)
		}
	}
	sort.SliceStable(dated, func(a, b int) bool { return dated[a].ModifiedAt.Before(dated[b].ModifiedAt) })
	for k := 1; k < len(dated); k++ {
		prev, cur := dated[k-1], dated[k]
		if prev.Ext() != cur.Ext() {
			continue
		}
		gap := cur.ModifiedAt.Sub(prev.ModifiedAt)
		if gap > TemporalWindow {
			continue
		}
		days := math.Round(gap.Hours()/24*100) / 100
		md := triple.Metadata{
			Source:     triple.SourceCrossDoc,
			Confidence: 0.7,
			Timestamp:  now,
			Fields:     map[string]any{"daysDiff": days},
		}
		out = append(out, triple.New(cur.ID, triple.FollowsTemporally, prev.ID, md))
	}
	return out
}

func sharedCategories(a, b []string) []string {
	var shared []string
	for _, c := range a {
		if c != "" && slices.Contains(b, c) && !slices.Contains(shared, c) {
			shared = append(shared, c)
		}
	}
	return shared
}
