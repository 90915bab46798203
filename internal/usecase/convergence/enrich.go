package convergence

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// Enrichment score contributions.
const (
	ChainMembershipBonus = 10
	ChainStrengthWeight  = 15
	CenterBonus          = 20
	MaxConvergenceScore  = 100
)

// Payload fields written for enriched documents.
const (
	PayloadConvergenceChains = "convergenceChains"
	PayloadConvergenceScore  = "convergenceScore"
	PayloadIntelligenceType  = "intelligenceType"
	PayloadEnrichmentLevel   = "enrichmentLevel"
)

// Intelligence types of an enriched document.
const (
	IntelligenceHub        = "convergence-hub"
	IntelligenceConvergent = "convergent"
	IntelligenceEmergent   = "emergent"
	IntelligenceIsolated   = "isolated"
)

// Enrichment levels by convergence score.
const (
	EnrichmentHigh    = "high"
	EnrichmentMedium  = "medium"
	EnrichmentLow     = "low"
	EnrichmentMinimal = "minimal"
)

// enrich scores every input document in input order. Dropped documents keep their base score.
func enrich(docs []domdoc.Document, set *docSet, chains []chain) []domconv.EnrichedDocument {
	out := make([]domconv.EnrichedDocument, len(docs))
	for i := range docs {
		e := domconv.EnrichedDocument{Document: docs[i].Clone()}
		var strengths float64
		if p, ok := set.pos[docs[i].ID]; ok {
			for _, c := range chains {
				if !slices.Contains(c.members, p) {
					continue
				}
				e.Chains = append(e.Chains, domconv.ChainRef{
					ChainID:      c.ChainID,
					Theme:        c.Theme,
					Strength:     c.Strength,
					Participants: c.Participants,
				})
				strengths += c.Strength
				if c.center == p {
					e.IsCenter = true
				}
			}
		}
		e.ConvergenceScore = Score(&docs[i], len(e.Chains), strengths, e.IsCenter)
		out[i] = e
	}
	return out
}

// Score is the enrichment score of a document, clamped to [0, 100].
// Relevance on a 0..1 scale is lifted to 0..100 first; NaN relevance counts as 0.
func Score(doc *domdoc.Document, chains int, strengthSum float64, center bool) float64 {
	rel := doc.NormalizedRelevance()
	if math.IsNaN(rel) {
		rel = 0
	}
	score := rel * 100
	score += ChainMembershipBonus * float64(chains)
	score += ChainStrengthWeight * strengthSum
	if center {
		score += CenterBonus
	}
	if math.IsNaN(score) {
		return 0
	}
	return round2(math.Max(0, math.Min(MaxConvergenceScore, score)))
}

// IntelligenceType classifies an enriched document for the vector payload.
func IntelligenceType(e *domconv.EnrichedDocument, emergent bool) string {
	switch {
	case e.IsCenter:
		return IntelligenceHub
	case len(e.Chains) > 0:
		return IntelligenceConvergent
	case emergent:
		return IntelligenceEmergent
	}
	return IntelligenceIsolated
}

// EnrichmentLevel buckets a convergence score.
func EnrichmentLevel(score float64) string {
	switch {
	case score >= 75:
		return EnrichmentHigh
	case score >= 50:
		return EnrichmentMedium
	case score >= 25:
		return EnrichmentLow
	}
	return EnrichmentMinimal
}

// ChainScore is the contribution of one chain to a member's score.
func ChainScore(strength float64) float64 {
	return round2(ChainMembershipBonus + ChainStrengthWeight*strength)
}

// persist writes the analyzed documents with their convergence payload.
func (a *Analyzer) persist(ctx context.Context, result *domconv.Result, vectors [][]float32, themes []domconv.EmergentTheme) error {
	inTheme := make(map[string]struct{})
	for _, t := range themes {
		for _, id := range t.Members {
			inTheme[id] = struct{}{}
		}
	}

	points := make([]domain.Point, 0, len(result.Documents))
	for i := range result.Documents {
		if vectors[i] == nil {
			continue
		}
		e := &result.Documents[i]
		chains := make([]map[string]any, 0, len(e.Chains))
		for _, c := range e.Chains {
			chains = append(chains, map[string]any{
				"chainId":          c.ChainID,
				"theme":            c.Theme,
				"participants":     c.Participants,
				"convergenceScore": ChainScore(c.Strength),
			})
		}
		_, emergent := inTheme[e.ID]

		payload := e.Payload()
		payload[PayloadConvergenceChains] = chains
		payload[PayloadConvergenceScore] = e.ConvergenceScore
		payload[PayloadIntelligenceType] = IntelligenceType(e, emergent)
		payload[PayloadEnrichmentLevel] = EnrichmentLevel(e.ConvergenceScore)
		points = append(points, domain.Point{ID: e.ID, Vector: vectors[i], Payload: payload})
	}
	if len(points) == 0 {
		return nil
	}
	if err := a.writer.Insert(ctx, points); err != nil {
		return fmt.Errorf("persist enriched documents: %w", err)
	}
	a.logger.Debug("Enriched documents persisted", zap.Int("points", len(points)))
	return nil
}
