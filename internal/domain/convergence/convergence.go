// Package convergence holds the result model of a convergence analysis run.
package convergence

import (
	"time"

	"github.com/kailas-cloud/consolidator/internal/domain/document"
)

// TemporalSpan is the modification-date range of a chain.
type TemporalSpan struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
	Days  float64   `json:"days"`
}

// Chain is a connected set of documents whose pairwise similarity path stays above the threshold.
type Chain struct {
	ChainID        string       `json:"chainId"`
	Theme          string       `json:"theme"`
	Strength       float64      `json:"strength"`
	Participants   []string     `json:"participants"`
	CenterDocument string       `json:"centerDocument"`
	TemporalSpan   TemporalSpan `json:"temporalSpan"`
}

// EmergentTheme is a micro-cluster of documents left outside every chain.
type EmergentTheme struct {
	ID        string   `json:"id"`
	Members   []string `json:"members"`
	Keywords  []string `json:"keywords"`
	Coherence float64  `json:"coherence"`
}

// Bridge is a cross-chain document pair.
type Bridge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Similarity float64 `json:"similarity"`
}

// CrossChainTheme links two chains whose centers are close.
type CrossChainTheme struct {
	Name       string   `json:"name"`
	ChainA     string   `json:"chainA"`
	ChainB     string   `json:"chainB"`
	Similarity float64  `json:"similarity"`
	Bridges    []Bridge `json:"bridges"`
}

// InsightKind classifies a generated insight.
type InsightKind string

// Insight kinds.
const (
	InsightStrongConvergence InsightKind = "strong-convergence"
	InsightTemporalEvolution InsightKind = "temporal-evolution"
	InsightEmergentTheme     InsightKind = "emergent-theme"
	InsightCrossDomain       InsightKind = "cross-domain-convergence"
	InsightKnowledgeHub      InsightKind = "knowledge-hub"
)

// Insight is a ranked finding derived from chains and themes.
type Insight struct {
	Kind        InsightKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Documents   []string    `json:"documents,omitempty"`
	ChainID     string      `json:"chainId,omitempty"`
	Score       float64     `json:"score"`
}

// ChainRef is a document's membership in one chain.
type ChainRef struct {
	ChainID      string   `json:"chainId"`
	Theme        string   `json:"theme"`
	Strength     float64  `json:"strength"`
	Participants []string `json:"participants"`
}

// EnrichedDocument is a document with its convergence score in [0, 100].
type EnrichedDocument struct {
	document.Document
	ConvergenceScore float64    `json:"convergenceScore"`
	Chains           []ChainRef `json:"convergenceChains,omitempty"`
	IsCenter         bool       `json:"isCenter"`
}

// Stats summarizes one analysis run.
type Stats struct {
	TotalDocuments          int     `json:"totalDocuments"`
	AnalyzedDocuments       int     `json:"analyzedDocuments"`
	DroppedDocuments        int     `json:"droppedDocuments"`
	Chains                  int     `json:"chains"`
	EmergentThemes          int     `json:"emergentThemes"`
	CrossChainThemes        int     `json:"crossChainThemes"`
	Insights                int     `json:"insights"`
	CacheHits               int     `json:"cacheHits"`
	CacheMisses             int     `json:"cacheMisses"`
	AverageConvergenceScore float64 `json:"averageConvergenceScore"`
	AverageChainStrength    float64 `json:"averageChainStrength"`
	DurationMs              int64   `json:"durationMs"`
}

// Result is the output of AnalyzeConvergence.
type Result struct {
	Documents        []EnrichedDocument `json:"documents"`
	Chains           []Chain            `json:"chains"`
	Themes           []EmergentTheme    `json:"themes"`
	CrossChainThemes []CrossChainTheme  `json:"crossChainThemes"`
	Insights         []Insight          `json:"insights"`
	Stats            Stats              `json:"stats"`
}
