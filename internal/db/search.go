package db

import "github.com/kailas-cloud/consolidator/internal/domain/search/filter"

// KNNQuery asks for the K nearest points to Vector among those matching Filter.
type KNNQuery struct {
	Index  string
	Filter filter.Expression
	Vector []float32
	K      int
	Fields []string
}

// SearchResult is one page of index hits. Total counts all matches, not just Entries.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a matched hash. For KNN queries Score is the cosine
// similarity clamped to [0, 1]; list queries leave it zero.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
