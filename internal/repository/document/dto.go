package document

import (
	"encoding/json"
	"strconv"
	"time"

	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// Hash field names of a stored document.
const (
	fieldName               = "name"
	fieldContent            = "content"
	fieldPreview            = "preview"
	fieldSummary            = "summary"
	fieldCategories         = "categories"
	fieldRelevance          = "relevance_score"
	fieldAnalysisType       = "analysis_type"
	fieldAnalysisConfidence = "analysis_confidence"
	fieldAnalyzed           = "analyzed"
	fieldSize               = "size"
	fieldExtension          = "extension"
	fieldCreatedAt          = "created_at"
	fieldModifiedAt         = "modified_at"
	fieldRefinedAt          = "refined_at"
	fieldAnnotations        = "annotations"
)

// buildHashFields converts a Document into a flat map[string]string for HSET.
// Lists are JSON-encoded, times use RFC 3339 with nanoseconds.
func buildHashFields(doc *domdoc.Document) map[string]string {
	m := map[string]string{
		fieldName:               doc.Name,
		fieldContent:            doc.Content,
		fieldPreview:            doc.Preview,
		fieldSummary:            doc.Summary,
		fieldCategories:         encodeList(doc.Categories),
		fieldRelevance:          strconv.FormatFloat(doc.RelevanceScore, 'f', -1, 64),
		fieldAnalysisType:       doc.AnalysisType,
		fieldAnalysisConfidence: strconv.FormatFloat(doc.AnalysisConfidence, 'f', -1, 64),
		fieldAnalyzed:           strconv.FormatBool(doc.Analyzed),
		fieldSize:               strconv.FormatInt(doc.Size, 10),
		fieldExtension:          doc.Extension,
		fieldCreatedAt:          encodeTime(doc.CreatedAt),
		fieldModifiedAt:         encodeTime(doc.ModifiedAt),
		fieldRefinedAt:          encodeTime(doc.RefinedAt),
		fieldAnnotations:        encodeList(doc.Annotations),
	}
	return m
}

// parseHashFields converts a flat hash map back into a Document.
// Unparseable numeric or time fields fall back to zero values.
func parseHashFields(id string, m map[string]string) domdoc.Document {
	doc := domdoc.Document{
		ID:           id,
		Name:         m[fieldName],
		Content:      m[fieldContent],
		Preview:      m[fieldPreview],
		Summary:      m[fieldSummary],
		Categories:   decodeList(m[fieldCategories]),
		AnalysisType: m[fieldAnalysisType],
		Extension:    m[fieldExtension],
		CreatedAt:    decodeTime(m[fieldCreatedAt]),
		ModifiedAt:   decodeTime(m[fieldModifiedAt]),
		RefinedAt:    decodeTime(m[fieldRefinedAt]),
		Annotations:  decodeList(m[fieldAnnotations]),
	}
	doc.RelevanceScore, _ = strconv.ParseFloat(m[fieldRelevance], 64)
	doc.AnalysisConfidence, _ = strconv.ParseFloat(m[fieldAnalysisConfidence], 64)
	doc.Analyzed, _ = strconv.ParseBool(m[fieldAnalyzed])
	doc.Size, _ = strconv.ParseInt(m[fieldSize], 10, 64)
	return doc
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil || len(items) == 0 {
		return nil
	}
	return items
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
