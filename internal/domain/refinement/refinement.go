// Package refinement models per-document refinement processes.
package refinement

import "time"

// Status is the state of a refinement process.
type Status string

// Process states. Completed, Error and Stopped are terminal.
const (
	StatusIdle      Status = "idle"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further iterations will run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// Process is a snapshot of one document's refinement.
type Process struct {
	DocumentID        string        `json:"documentId"`
	Status            Status        `json:"status"`
	Iteration         int           `json:"iteration"`
	MaxIterations     int           `json:"maxIterations"`
	InitialConfidence float64       `json:"initialConfidence"`
	CurrentConfidence float64       `json:"currentConfidence"`
	ConfidenceHistory []float64     `json:"confidenceHistory"`
	AnalysisType      string        `json:"analysisType,omitempty"`
	ContextConfidence float64       `json:"contextConfidence"`
	StartedAt         time.Time     `json:"startedAt"`
	CompletedAt       time.Time     `json:"completedAt,omitzero"`
	Duration          time.Duration `json:"duration"`
	Converged         bool          `json:"converged"`
	Error             string        `json:"error,omitempty"`
}

// Gain is the confidence improvement since the process started.
func (p Process) Gain() float64 {
	return p.CurrentConfidence - p.InitialConfidence
}

// HistoryEntry records one confidence observation for a document.
type HistoryEntry struct {
	Confidence   float64   `json:"confidence"`
	AnalysisType string    `json:"analysisType"`
	Iteration    int       `json:"iteration"`
	At           time.Time `json:"at"`
}

// GlobalMetrics aggregates finished runs.
type GlobalMetrics struct {
	TotalRuns         int     `json:"totalRuns"`
	SuccessfulRuns    int     `json:"successfulRuns"`
	FailedRuns        int     `json:"failedRuns"`
	SuccessRate       float64 `json:"successRate"`
	AverageIterations float64 `json:"averageIterations"`
	AverageGain       float64 `json:"averageGain"`
}

// StatusReport is the orchestrator view returned by Status.
type StatusReport struct {
	Active  []Process     `json:"active"`
	Recent  []Process     `json:"recent"`
	Queued  []string      `json:"queued"`
	Metrics GlobalMetrics `json:"metrics"`
}
