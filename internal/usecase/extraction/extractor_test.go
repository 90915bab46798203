package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

func TestExtract_PlanDocument(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{
		ID:             "plan",
		Name:           "plan_v3.md",
		Content:        "Decisão: migrar para Go. código exemplo: function foo(){}",
		RelevanceScore: 0.85,
		Categories:     []string{"Estratégia"},
	}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := findObject(triples, triple.HasVersion, "3"); !ok {
		t.Error("expected hasVersion 3")
	}
	if evo, ok := findObject(triples, triple.EvolvedFrom, "plan_v2.md"); !ok {
		t.Error("expected evolvedFrom plan_v2.md")
	} else if evo.Confidence() != 0.6 {
		t.Errorf("evolvedFrom confidence = %v", evo.Confidence())
	}
	if code := find(triples, triple.ContainsCode); len(code) != 1 || code[0].Confidence() != 0.9 {
		t.Errorf("expected one containsCode at 0.9, got %v", code)
	}
	if _, ok := findObject(triples, triple.UsesLanguage, "javascript"); !ok {
		t.Error("expected usesLanguage javascript")
	}
	if ra, ok := findObject(triples, triple.RequiresAction, HighPriorityAction); !ok || ra.Confidence() != 0.8 {
		t.Error("expected requiresAction at 0.8")
	}
	kw, ok := findObject(triples, triple.ContainsKeyword, "decisão")
	if !ok {
		t.Fatal("expected containsKeyword decisão")
	}
	if cat, _ := kw.Metadata.Field("category"); cat != KeywordDecisivo {
		t.Errorf("keyword category = %v", cat)
	}
	if ins := find(triples, triple.HasInsight); len(ins) != 0 {
		t.Errorf("expected no insights, got %v", ins)
	}
	if _, ok := findObject(triples, triple.PotentialSolution, CodeSolution); !ok {
		t.Error("expected potentialSolution from code + high relevance")
	}
}

func TestExtract_StructuralTriples(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{
		ID:             "d1",
		Name:           "notes.txt",
		Size:           2048,
		Categories:     []string{"IA", "Tech"},
		RelevanceScore: 40,
		Analyzed:       true,
		CreatedAt:      fixedNow.Add(-48 * time.Hour),
		ModifiedAt:     fixedNow.Add(-time.Hour),
	}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, tc := range []struct{ predicate, object string }{
		{triple.HasName, "notes.txt"},
		{triple.HasSize, "2048"},
		{triple.HasType, ".txt"},
		{triple.HasCategory, "IA"},
		{triple.HasCategory, "Tech"},
		{triple.IsAnalyzed, "true"},
		{triple.HasRelevance, "0.4"},
	} {
		tr, ok := findObject(triples, tc.predicate, tc.object)
		if !ok {
			t.Errorf("missing %s %s", tc.predicate, tc.object)
			continue
		}
		want := 1.0
		if tc.predicate == triple.HasRelevance {
			want = 0.9
		}
		if tr.Confidence() != want {
			t.Errorf("%s confidence = %v, want %v", tc.predicate, tr.Confidence(), want)
		}
		if tr.Subject.Kind != triple.KindSystem || tr.Object.Kind != triple.KindTarget {
			t.Errorf("unexpected ref kinds on %s", tc.predicate)
		}
	}
	if len(find(triples, triple.RequiresAction)) != 0 {
		t.Error("relevance 40 must not require action")
	}
	if len(find(triples, triple.CreatedAt)) != 1 || len(find(triples, triple.ModifiedAt)) != 1 {
		t.Error("expected temporal triples")
	}
	if len(find(triples, triple.HasVersion)) != 0 {
		t.Error("no version token in name")
	}
}

func TestExtract_KeywordSuggestionAndTechnicalPattern(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{
		ID:      "tech",
		Name:    "design.md",
		Content: "A nova arquitetura do servidor usa um algoritmo de cache e uma API para o banco de dados.",
	}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sug, ok := findObject(triples, triple.SuggestedCategory, KeywordTecnico)
	if !ok || sug.Confidence() != 0.7 {
		t.Fatalf("expected suggestedCategory tecnico at 0.7, got %v", find(triples, triple.SuggestedCategory))
	}
	var pattern *triple.Triple
	for i := range triples {
		if triples[i].SubjectValue() == TechnicalPattern {
			pattern = &triples[i]
		}
	}
	if pattern == nil {
		t.Fatal("expected pattern:technical correlation")
	}
	if pattern.PredicateValue() != triple.CorrelatesWith || pattern.ObjectValue() != "tech" || pattern.Confidence() != 0.9 {
		t.Errorf("unexpected pattern triple %+v", pattern)
	}
}

func TestExtract_KeywordBoundaries(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{ID: "b", Name: "b.md", Content: "Precisamos implementar o fluxo."}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := findObject(triples, triple.ContainsKeyword, "implementar"); !ok {
		t.Error("expected implementar")
	}
	if _, ok := findObject(triples, triple.ContainsKeyword, "implement"); ok {
		t.Error("implement must not match inside implementar")
	}
}

func TestExtract_FileMentions(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{
		ID:   "f",
		Name: "index.md",
		Content: `Veja "config.yaml" e @main.go, depois abra o arquivo notes_v2.txt. ` +
			`Ignorar "index.md" e repetir 'config.yaml'.`,
	}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	mentions := find(triples, triple.MentionsFile)
	got := map[string]bool{}
	for _, m := range mentions {
		got[m.ObjectValue()] = true
		if m.Confidence() != 0.7 {
			t.Errorf("mention confidence = %v", m.Confidence())
		}
	}
	if len(mentions) != 3 || !got["config.yaml"] || !got["main.go"] || !got["notes_v2.txt"] {
		t.Errorf("unexpected mentions %v", got)
	}
}

func TestExtract_Insights(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{
		ID:   "i",
		Name: "retro.md",
		Content: "Insight: o gargalo estava na serialização.\n" +
			"Descobrimos que o cache reduz a latência pela metade.\n" +
			"Solução: usar filas para desacoplar os serviços.",
	}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{
		InsightExplicit:  0.95,
		InsightDiscovery: 0.85,
		InsightSolution:  0.85,
	}
	got := map[string]float64{}
	for _, ins := range find(triples, triple.HasInsight) {
		label, _ := ins.Metadata.Field("type")
		got[label.(string)] = ins.Confidence()
	}
	for label, conf := range want {
		if got[label] != conf {
			t.Errorf("insight %s confidence = %v, want %v (all: %v)", label, got[label], conf, got)
		}
	}
	if _, ok := findObject(triples, triple.HasInsight, "o gargalo estava na serialização"); !ok {
		t.Error("expected captured insight text as object")
	}
}

func TestExtract_AnalysisType(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{ID: "a", Name: "a.md", AnalysisType: "Momento Decisivo"}

	triples, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	was, ok := findObject(triples, triple.WasAnalyzedAs, "Momento Decisivo")
	if !ok || was.Confidence() != DefaultAnalysisConfidence {
		t.Errorf("expected wasAnalyzedAs at default confidence, got %+v", was)
	}
	sug, ok := findObject(triples, triple.SuggestedCategory, "Decisivo")
	if !ok || sug.Confidence() != 0.85 {
		t.Errorf("expected suggestedCategory Decisivo at 0.85")
	}
}

func TestExtract_VersionFloorSkipsEvolvedFrom(t *testing.T) {
	e := newTestExtractor(t, Options{})
	for _, name := range []string{"spec_v1.md", "spec_v2.0.md"} {
		triples, err := e.ExtractFromDocument(context.Background(), &domdoc.Document{ID: name, Name: name})
		if err != nil {
			t.Fatal(err)
		}
		if len(find(triples, triple.HasVersion)) != 1 {
			t.Errorf("%s: expected hasVersion", name)
		}
		if evo := find(triples, triple.EvolvedFrom); len(evo) != 0 {
			t.Errorf("%s: expected no evolvedFrom, got %v", name, evo)
		}
	}
}

func TestPreviousVersion(t *testing.T) {
	tests := map[string]string{
		"1":     "1",
		"0":     "1",
		"3":     "2",
		"10":    "9",
		"1.2":   "1.1",
		"2.0":   "2.0",
		"1.2.3": "1.2.2",
		"1.10":  "1.9",
	}
	for in, want := range tests {
		if got := PreviousVersion(in); got != want {
			t.Errorf("PreviousVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectVersion_FallbackPatterns(t *testing.T) {
	tests := []struct{ name, version, prev string }{
		{"plan_v3.md", "3", "plan_v2.md"},
		{"doc-v1.2.txt", "1.2", "doc-v1.1.txt"},
		{"relatorio_versao_4.md", "4", "relatorio_versao_3.md"},
		{"api version 2 notes.md", "2", "api version 1 notes.md"},
		{"draft_rev5.md", "5", "draft_rev4.md"},
	}
	for _, tt := range tests {
		v, prev, ok := detectVersion(tt.name)
		if !ok || v != tt.version || prev != tt.prev {
			t.Errorf("detectVersion(%q) = %q, %q, %v; want %q, %q", tt.name, v, prev, ok, tt.version, tt.prev)
		}
	}
	if _, _, ok := detectVersion("notes.md"); ok {
		t.Error("notes.md has no version")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct{ text, want string }{
		{"function foo(){}", "javascript"},
		{"def run(self):\n    print(self.name)", "python"},
		{"package main\n\nfunc main() {\n\tx := 1\n}", "go"},
		{"public class App {\n  @Override\n  public String toString() { return \"\"; }\n}", "java"},
		{"plain prose without code", ""},
	}
	for _, tt := range tests {
		if got, _ := DetectLanguage(tt.text); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtract_CacheKeyedOnFingerprint(t *testing.T) {
	e := newTestExtractor(t, Options{})
	doc := &domdoc.Document{ID: "c", Name: "c.md", Content: "uma decisão"}

	first, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := e.ExtractFromDocument(context.Background(), doc)
	if len(again) != len(first) {
		t.Fatalf("cache hit returned %d triples, want %d", len(again), len(first))
	}

	doc.Content = "uma decisão com código"
	changed, _ := e.ExtractFromDocument(context.Background(), doc)
	if _, ok := findObject(changed, triple.ContainsKeyword, "código"); !ok {
		t.Error("content change must bypass the cached result")
	}
	if e.CacheLen() != 1 {
		t.Errorf("stale fingerprint should be evicted, cache len = %d", e.CacheLen())
	}

	e.Invalidate("c")
	if e.CacheLen() != 0 {
		t.Errorf("Invalidate left %d entries", e.CacheLen())
	}
	e.ExtractFromDocument(context.Background(), doc)
	e.Clear()
	if e.CacheLen() != 0 {
		t.Error("Clear must empty the cache")
	}
}

func TestExtract_CacheSeesMetadataChanges(t *testing.T) {
	e := newTestExtractor(t, Options{})
	modified := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := &domdoc.Document{ID: "m", Name: "m.md", Content: "notas", RelevanceScore: 0.2, Size: 10, ModifiedAt: modified}
	if _, err := e.ExtractFromDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	doc.RelevanceScore = 0.95
	doc.Size = 9999
	doc.Analyzed = true
	got, err := e.ExtractFromDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := findObject(got, triple.RequiresAction, HighPriorityAction); !ok {
		t.Error("relevance change must produce requiresAction")
	}
	if _, ok := findObject(got, triple.IsAnalyzed, "true"); !ok {
		t.Error("analyzed flag change must be re-extracted")
	}
	if _, ok := findObject(got, triple.HasSize, "9999"); !ok {
		t.Error("size change must be re-extracted")
	}
}

func TestExtract_RulesAndPanicRecovery(t *testing.T) {
	rules := ruleFunc(func(doc *domdoc.Document, _ []triple.Triple) []triple.Triple {
		if doc.ID == "boom" {
			panic("bad rule")
		}
		return []triple.Triple{triple.New(doc.ID, triple.RelatedTo, "external", triple.Metadata{Confidence: 0.5})}
	})
	e := newTestExtractor(t, Options{Rules: rules})

	triples, err := e.ExtractFromDocument(context.Background(), &domdoc.Document{ID: "ok", Name: "ok.md"})
	if err != nil {
		t.Fatal(err)
	}
	rel, ok := findObject(triples, triple.RelatedTo, "external")
	if !ok || rel.Metadata.Source != triple.SourceRule || rel.Metadata.Timestamp.IsZero() {
		t.Errorf("expected rule triple with defaults, got %+v", rel)
	}

	_, err = e.ExtractFromDocument(context.Background(), &domdoc.Document{ID: "boom", Name: "b.md"})
	var exErr *domain.ExtractionError
	if !errors.As(err, &exErr) || exErr.DocumentID != "boom" {
		t.Fatalf("expected ExtractionError for boom, got %v", err)
	}
	if !errors.Is(err, domain.ErrExtraction) {
		t.Error("ExtractionError must match ErrExtraction")
	}
}

func TestExtract_MissingID(t *testing.T) {
	e := newTestExtractor(t, Options{})
	_, err := e.ExtractFromDocument(context.Background(), &domdoc.Document{Name: "x.md"})
	if !errors.Is(err, domain.ErrInvalidSchema) || !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected invalid schema extraction error, got %v", err)
	}
}
