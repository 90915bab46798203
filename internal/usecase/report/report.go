package report

import "time"

// Count is one bucket of a distribution.
type Count struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ChainStats summarizes convergence chain sizes across all points.
type ChainStats struct {
	Total            int         `json:"total"`
	Unique           int         `json:"unique"`
	MeanSize         float64     `json:"meanSize"`
	MedianSize       float64     `json:"medianSize"`
	MaxSize          int         `json:"maxSize"`
	MinSize          int         `json:"minSize"`
	SizeDistribution map[int]int `json:"sizeDistribution"`
}

// ScoreRange is one histogram bucket of chain convergence scores. Mean is zero for empty buckets.
type ScoreRange struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// ScoreStats summarizes chain convergence scores.
type ScoreStats struct {
	Count  int          `json:"count"`
	Mean   float64      `json:"mean"`
	Median float64      `json:"median"`
	Max    float64      `json:"max"`
	Min    float64      `json:"min"`
	StdDev float64      `json:"stdDev"`
	Ranges []ScoreRange `json:"ranges"`
}

// Quality holds the share of points carrying each enrichment field, in percent.
type Quality struct {
	WithFile             float64 `json:"withFile"`
	WithCategories       float64 `json:"withCategories"`
	WithIntelligenceType float64 `json:"withIntelligenceType"`
	WithChains           float64 `json:"withChains"`
	WithScore            float64 `json:"withScore"`
}

// Report is a corpus-wide view of the vector store contents.
type Report struct {
	TotalPoints       int        `json:"totalPoints"`
	UniqueFiles       int        `json:"uniqueFiles"`
	Files             []string   `json:"files"`
	PayloadFields     []string   `json:"payloadFields"`
	Categories        []Count    `json:"categories"`
	IntelligenceTypes []Count    `json:"intelligenceTypes"`
	EnrichmentLevels  []Count    `json:"enrichmentLevels"`
	Chains            ChainStats `json:"chains"`
	Scores            ScoreStats `json:"scores"`
	Quality           Quality    `json:"quality"`
	GeneratedAt       time.Time  `json:"generatedAt"`
}
