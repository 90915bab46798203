// Package document holds the document record consumed by extraction, convergence and refinement.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 5 << 20

// Document is a read-mostly record owned by the host application.
// Refinement writes back AnalysisType, AnalysisConfidence and RefinedAt only.
type Document struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Content            string    `json:"content,omitempty"`
	Preview            string    `json:"preview,omitempty"`
	Summary            string    `json:"summary,omitempty"`
	Categories         []string  `json:"categories,omitempty"`
	RelevanceScore     float64   `json:"relevanceScore"`
	AnalysisType       string    `json:"analysisType,omitempty"`
	AnalysisConfidence float64   `json:"analysisConfidence,omitempty"`
	Analyzed           bool      `json:"analyzed"`
	Size               int64     `json:"size,omitempty"`
	Extension          string    `json:"extension,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitzero"`
	ModifiedAt         time.Time `json:"modifiedAt,omitzero"`
	RefinedAt          time.Time `json:"refinedAt,omitzero"`
	Annotations        []string  `json:"annotations,omitempty"`
}

// Analysis is the refinement outcome written back to a stored document.
type Analysis struct {
	Type       string
	Confidence float64
	RefinedAt  time.Time
}

// ApplyAnalysis sets the refinement-owned fields and leaves curated ones untouched.
func (d *Document) ApplyAnalysis(a Analysis) {
	d.AnalysisType = a.Type
	d.AnalysisConfidence = a.Confidence
	d.RefinedAt = a.RefinedAt
}

// Validate checks identifier and content bounds.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if len(d.ID) > 256 {
		return fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(d.ID) {
		return fmt.Errorf("document ID must match %s", idRegex.String())
	}
	if len(d.Content) > MaxContentSize {
		return fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	if math.IsNaN(d.RelevanceScore) || d.RelevanceScore < 0 || d.RelevanceScore > 100 {
		return fmt.Errorf("relevance score must be within [0, 100], got %g", d.RelevanceScore)
	}
	return nil
}

// NormalizedRelevance returns the relevance score on a 0..1 scale.
// Values above 1 are treated as percentages.
func (d *Document) NormalizedRelevance() float64 {
	if d.RelevanceScore > 1 {
		return d.RelevanceScore / 100
	}
	return d.RelevanceScore
}

// Text returns the richest textual body available: content, then preview.
func (d *Document) Text() string {
	if d.Content != "" {
		return d.Content
	}
	return d.Preview
}

// Ext returns the lowercase file extension including the dot.
func (d *Document) Ext() string {
	ext := d.Extension
	if ext == "" {
		ext = filepath.Ext(d.Name)
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// HasCategory reports whether the document carries the category.
func (d *Document) HasCategory(name string) bool {
	return slices.Contains(d.Categories, name)
}

// Fingerprint identifies the document version seen by extraction. Every field
// the extractor reads takes part, metadata included.
func (d *Document) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{
		d.Name, d.Content, d.Preview, d.Summary, d.Extension,
		d.AnalysisType,
		strconv.FormatFloat(d.AnalysisConfidence, 'g', -1, 64),
		strconv.FormatFloat(d.RelevanceScore, 'g', -1, 64),
		strconv.FormatBool(d.Analyzed),
		strconv.FormatInt(d.Size, 10),
		strings.Join(d.Categories, "\x1f"),
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
		d.ModifiedAt.UTC().Format(time.RFC3339Nano),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	d.Categories = slices.Clone(d.Categories)
	d.Annotations = slices.Clone(d.Annotations)
	return d
}

// Payload field names shared by every vector point that represents a document.
const (
	PayloadDocumentID         = "documentId"
	PayloadName               = "name"
	PayloadCategories         = "categories"
	PayloadAnalysisType       = "analysisType"
	PayloadAnalysisConfidence = "analysisConfidence"
	PayloadRelevanceScore     = "relevanceScore"
	PayloadSourceFile         = "sourceFile"
)

// Payload returns the base vector point payload of the document.
func (d *Document) Payload() map[string]any {
	categories := d.Categories
	if categories == nil {
		categories = []string{}
	}
	return map[string]any{
		PayloadDocumentID:         d.ID,
		PayloadName:               d.Name,
		PayloadCategories:         slices.Clone(categories),
		PayloadAnalysisType:       d.AnalysisType,
		PayloadAnalysisConfidence: d.AnalysisConfidence,
		PayloadRelevanceScore:     d.RelevanceScore,
		PayloadSourceFile:         d.Name,
	}
}

// ExcerptLength bounds the content excerpt of the embedding text, in runes.
const ExcerptLength = 1000

// Excerpt returns the first ExcerptLength runes of Text.
func (d *Document) Excerpt() string {
	r := []rune(strings.TrimSpace(d.Text()))
	if len(r) <= ExcerptLength {
		return string(r)
	}
	return string(r[:ExcerptLength])
}

// EmbeddingText is the representative text embedded for a document:
// name, analysis type, categories, a content excerpt and the summary, one per line.
func (d *Document) EmbeddingText() string {
	parts := make([]string, 0, 5)
	parts = append(parts, d.Name)
	if d.AnalysisType != "" {
		parts = append(parts, d.AnalysisType)
	}
	if len(d.Categories) > 0 {
		parts = append(parts, strings.Join(d.Categories, ", "))
	}
	if text := d.Excerpt(); text != "" {
		parts = append(parts, text)
	}
	if d.Summary != "" {
		parts = append(parts, d.Summary)
	}
	return strings.Join(parts, "\n")
}
