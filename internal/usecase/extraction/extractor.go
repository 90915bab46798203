// Package extraction turns documents into semantic triples using rule-based pattern matching.
package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// Defaults.
const (
	DefaultHighRelevanceThreshold = 0.8
	DefaultCacheSize              = 1000
	DefaultAnalysisConfidence     = 0.8

	// SuggestionThreshold is the keyword match count that suggests a category.
	SuggestionThreshold = 3

	// HighPriorityAction is the object of the relevance-driven requiresAction triple.
	HighPriorityAction = "high-priority-review"
	// TechnicalPattern is the synthetic subject correlating technical documents.
	TechnicalPattern = "pattern:technical"
	// CodeSolution is the object of the code + high relevance inference.
	CodeSolution = "code-solution"
)

// Options configures the extractor.
type Options struct {
	HighRelevanceThreshold float64
	CacheSize              int
	Rules                  RuleProvider
}

type cacheKey struct {
	id          string
	fingerprint string
}

// Extractor produces triples from documents.
// Results are cached per (id, fingerprint), so a content change misses the cache.
type Extractor struct {
	highRelevance float64
	rules         RuleProvider
	cache         *lru.Cache[cacheKey, []triple.Triple]
	now           func() time.Time
	logger        *zap.Logger
}

// New creates an extractor.
func New(opts Options, logger *zap.Logger) (*Extractor, error) {
	if opts.HighRelevanceThreshold <= 0 {
		opts.HighRelevanceThreshold = DefaultHighRelevanceThreshold
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, []triple.Triple](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	return &Extractor{
		highRelevance: opts.HighRelevanceThreshold,
		rules:         opts.Rules,
		cache:         cache,
		now:           time.Now,
		logger:        logger,
	}, nil
}

// ExtractFromDocument returns the triples of one document.
// Failures, including panics in pattern code, surface as *domain.ExtractionError.
func (e *Extractor) ExtractFromDocument(ctx context.Context, doc *domdoc.Document) (out []triple.Triple, err error) {
	if doc == nil || doc.ID == "" {
		return nil, &domain.ExtractionError{Err: fmt.Errorf("document id is required: %w", domain.ErrInvalidSchema)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{DocumentID: doc.ID, Err: err}
	}

	key := cacheKey{id: doc.ID, fingerprint: doc.Fingerprint()}
	if cached, ok := e.cache.Get(key); ok {
		metrics.ExtractionCacheTotal.WithLabelValues("hit").Inc()
		return append([]triple.Triple(nil), cached...), nil
	}
	metrics.ExtractionCacheTotal.WithLabelValues("miss").Inc()

	defer func() {
		if r := recover(); r != nil {
			metrics.ExtractionErrorsTotal.Inc()
			e.logger.Error("Extraction panicked",
				zap.String("document_id", doc.ID),
				zap.Any("panic", r),
			)
			out = nil
			err = &domain.ExtractionError{DocumentID: doc.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	triples := e.extract(doc)

	// старые отпечатки того же документа больше не нужны
	e.Invalidate(doc.ID)
	e.cache.Add(key, triples)

	for _, t := range triples {
		metrics.TriplesExtractedTotal.WithLabelValues(t.Metadata.Source).Inc()
	}
	e.logger.Debug("Triples extracted",
		zap.String("document_id", doc.ID),
		zap.Int("count", len(triples)),
	)
	return append([]triple.Triple(nil), triples...), nil
}

// Invalidate drops every cached entry of a document.
func (e *Extractor) Invalidate(id string) {
	for _, k := range e.cache.Keys() {
		if k.id == id {
			e.cache.Remove(k)
		}
	}
}

// Clear empties the cache.
func (e *Extractor) Clear() { e.cache.Purge() }

// CacheLen returns the number of cached documents.
func (e *Extractor) CacheLen() int { return e.cache.Len() }

type emitter struct {
	subject string
	now     time.Time
	triples []triple.Triple
}

func (em *emitter) emit(predicate string, object any, source string, confidence float64, fields map[string]any) {
	md := triple.Metadata{Source: source, Confidence: confidence, Timestamp: em.now, Fields: fields}
	em.triples = append(em.triples, triple.New(em.subject, predicate, object, md))
}

func (e *Extractor) extract(doc *domdoc.Document) []triple.Triple {
	em := &emitter{subject: doc.ID, now: e.now().UTC()}

	e.structural(em, doc)
	e.relevance(em, doc)

	technical := 0
	if text := doc.Text(); text != "" {
		technical = e.keywords(em, text)
		e.code(em, text)
		e.fileMentions(em, text, doc.Name)
		e.insights(em, text)
	}

	e.analysis(em, doc)
	e.temporal(em, doc)
	e.infer(em, doc, technical)
	return em.triples
}

func (e *Extractor) structural(em *emitter, doc *domdoc.Document) {
	if doc.Name != "" {
		em.emit(triple.HasName, doc.Name, triple.SourceMetadata, 1.0, nil)
	}
	if doc.Size > 0 {
		em.emit(triple.HasSize, float64(doc.Size), triple.SourceMetadata, 1.0, nil)
	}
	if ext := doc.Ext(); ext != "" {
		em.emit(triple.HasType, ext, triple.SourceMetadata, 1.0, nil)
	}
	for _, c := range doc.Categories {
		if c == "" {
			continue
		}
		em.emit(triple.HasCategory, c, triple.SourceMetadata, 1.0, nil)
	}
	em.emit(triple.IsAnalyzed, strconv.FormatBool(doc.Analyzed), triple.SourceMetadata, 1.0, nil)
}

func (e *Extractor) relevance(em *emitter, doc *domdoc.Document) {
	if doc.RelevanceScore <= 0 {
		return
	}
	rel := doc.NormalizedRelevance()
	em.emit(triple.HasRelevance, rel, triple.SourceMetadata, 0.9, nil)
	if rel > e.highRelevance {
		em.emit(triple.RequiresAction, HighPriorityAction, triple.SourceInference, 0.8,
			map[string]any{"basedOn": triple.HasRelevance})
	}
}

// keywords emits containsKeyword triples and returns the technical match count.
func (e *Extractor) keywords(em *emitter, text string) int {
	technical := 0
	for _, category := range KeywordCategories {
		matches := 0
		for _, m := range keywordMatchers[category] {
			if !m.re.MatchString(text) {
				continue
			}
			matches++
			em.emit(triple.ContainsKeyword, m.keyword, triple.SourceContent, 0.8,
				map[string]any{"category": category, "weight": m.weight})
		}
		if matches >= SuggestionThreshold {
			em.emit(triple.SuggestedCategory, category, triple.SourceContent, 0.7,
				map[string]any{"basedOn": triple.ContainsKeyword, "matches": matches})
		}
		if category == KeywordTecnico {
			technical = matches
		}
	}
	return technical
}

func (e *Extractor) code(em *emitter, text string) {
	signatures := 0
	for _, re := range codeSignatures {
		if re.MatchString(text) {
			signatures++
		}
	}
	if signatures == 0 {
		return
	}
	em.emit(triple.ContainsCode, "true", triple.SourceContent, 0.9,
		map[string]any{"signatures": signatures})

	if lang, hits := DetectLanguage(text); lang != "" {
		em.emit(triple.UsesLanguage, lang, triple.SourceContent, 0.8,
			map[string]any{"signatures": hits})
	}
}

// DetectLanguage returns the language with the most matching signatures,
// provided it reaches MinLanguageSignatures.
func DetectLanguage(text string) (string, int) {
	best, bestHits := "", 0
	for _, ls := range languageSignatures {
		hits := 0
		for _, re := range ls.patterns {
			if re.MatchString(text) {
				hits++
			}
		}
		if hits >= MinLanguageSignatures && hits > bestHits {
			best, bestHits = ls.language, hits
		}
	}
	return best, bestHits
}

func (e *Extractor) fileMentions(em *emitter, text, ownName string) {
	seen := make(map[string]bool)
	for _, re := range filePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if name == ownName || seen[name] {
				continue
			}
			seen[name] = true
			em.emit(triple.MentionsFile, name, triple.SourceContent, 0.7, nil)
		}
	}
}

func (e *Extractor) insights(em *emitter, text string) {
	seen := make(map[string]bool)
	for _, p := range insightPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			body := strings.TrimSpace(m[1])
			if body == "" || seen[body] {
				continue
			}
			seen[body] = true
			em.emit(triple.HasInsight, body, triple.SourceContent, p.confidence,
				map[string]any{"type": p.label, "context": strings.TrimSpace(m[0])})
		}
	}
}

func (e *Extractor) analysis(em *emitter, doc *domdoc.Document) {
	if doc.AnalysisType == "" {
		return
	}
	conf := doc.AnalysisConfidence
	if conf <= 0 {
		conf = DefaultAnalysisConfidence
	}
	em.emit(triple.WasAnalyzedAs, doc.AnalysisType, triple.SourceMetadata, conf, nil)
	if category, ok := SuggestedCategoryFor(doc.AnalysisType); ok {
		em.emit(triple.SuggestedCategory, category, triple.SourceInference, 0.85,
			map[string]any{"basedOn": triple.WasAnalyzedAs})
	}
}

func (e *Extractor) temporal(em *emitter, doc *domdoc.Document) {
	if !doc.CreatedAt.IsZero() {
		em.emit(triple.CreatedAt, doc.CreatedAt.UTC().Format(time.RFC3339), triple.SourceTemporal, 1.0, nil)
	}
	if !doc.ModifiedAt.IsZero() {
		em.emit(triple.ModifiedAt, doc.ModifiedAt.UTC().Format(time.RFC3339), triple.SourceTemporal, 1.0, nil)
	}
	version, prevName, ok := detectVersion(doc.Name)
	if !ok {
		return
	}
	em.emit(triple.HasVersion, version, triple.SourceTemporal, 0.9, nil)
	if prevName != doc.Name {
		em.emit(triple.EvolvedFrom, prevName, triple.SourceTemporal, 0.6,
			map[string]any{"basedOn": triple.HasVersion})
	}
}

func (e *Extractor) infer(em *emitter, doc *domdoc.Document, technical int) {
	hasCode := false
	for _, t := range em.triples {
		if t.PredicateValue() == triple.ContainsCode {
			hasCode = true
			break
		}
	}
	if hasCode && doc.NormalizedRelevance() > e.highRelevance {
		em.emit(triple.PotentialSolution, CodeSolution, triple.SourceInference, 0.85,
			map[string]any{"basedOn": triple.ContainsCode + "+" + triple.HasRelevance})
	}
	if technical >= SuggestionThreshold {
		md := triple.Metadata{
			Source:     triple.SourceInference,
			Confidence: 0.9,
			Timestamp:  em.now,
			Fields:     map[string]any{"basedOn": triple.ContainsKeyword, "matches": technical},
		}
		em.triples = append(em.triples, triple.New(TechnicalPattern, triple.CorrelatesWith, doc.ID, md))
	}
	if e.rules != nil {
		for _, t := range e.rules.Infer(doc, append([]triple.Triple(nil), em.triples...)) {
			if t.Metadata.Source == "" {
				t.Metadata.Source = triple.SourceRule
			}
			if t.Metadata.Timestamp.IsZero() {
				t.Metadata.Timestamp = em.now
			}
			em.triples = append(em.triples, t)
		}
	}
}
