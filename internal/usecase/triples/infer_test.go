package triples

import (
	"testing"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

func TestInfer_TransitiveEvolution(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("v3", triple.EvolvedFrom, "v2", md(triple.SourceTemporal, 0.6))
	s.Add("v2", triple.EvolvedFrom, "v1", md(triple.SourceTemporal, 0.6))
	s.Add("v1", triple.EvolvedFrom, "v0", md(triple.SourceTemporal, 0.6))

	n := s.Infer()
	// v3->v1 and v2->v0 in the first round; chaining derivedFrom is not a rule
	if n != 2 {
		t.Fatalf("expected 2 inferred triples, got %d", n)
	}
	got, ok := s.Get("v3", triple.DerivedFrom, "v1")
	if !ok {
		t.Fatal("expected v3 derivedFrom v1")
	}
	if got.Confidence() != 0.5 || got.Metadata.Source != triple.SourceInference {
		t.Errorf("unexpected metadata %+v", got.Metadata)
	}
	if rule, _ := got.Metadata.Field("rule"); rule != "transitive-evolution" {
		t.Errorf("rule = %v", rule)
	}
}

func TestInfer_CategoryAndTime(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("a", triple.SharesCategoryWith, "b", md(triple.SourceCrossDoc, 0.9))
	s.Add("b", triple.FollowsTemporally, "a", md(triple.SourceCrossDoc, 0.7))

	if n := s.Infer(); n != 1 {
		t.Fatalf("expected 1 inferred triple, got %d", n)
	}
	rel, ok := s.Get("b", triple.RelatedTo, "a")
	if !ok || rel.Confidence() != 0.75 {
		t.Fatalf("expected b relatedTo a at 0.75, got %+v %v", rel, ok)
	}
}

func TestInfer_Idempotent(t *testing.T) {
	s := newTestStore(t, nil)
	s.Add("a", triple.SharesCategoryWith, "b", md(triple.SourceCrossDoc, 0.9))
	s.Add("a", triple.FollowsTemporally, "b", md(triple.SourceCrossDoc, 0.7))

	first := s.Infer()
	size := s.Len()
	if first == 0 {
		t.Fatal("expected first pass to infer")
	}
	if n := s.Infer(); n != 0 {
		t.Errorf("second pass added %d", n)
	}
	if s.Len() != size {
		t.Errorf("store grew on second pass")
	}
}

func TestInfer_CustomRuleChains(t *testing.T) {
	s := newTestStore(t, nil).WithRules(Rule{
		Name:       "related-closure",
		When:       []Pattern{{"?a", triple.RelatedTo, "?b"}, {"?b", triple.RelatedTo, "?c"}},
		Then:       Pattern{"?a", triple.RelatedTo, "?c"},
		Confidence: 0.4,
	})
	s.Add("a", triple.RelatedTo, "b", md(triple.SourceRule, 0.8))
	s.Add("b", triple.RelatedTo, "c", md(triple.SourceRule, 0.8))
	s.Add("c", triple.RelatedTo, "d", md(triple.SourceRule, 0.8))

	s.Infer()
	if _, ok := s.Get("a", triple.RelatedTo, "d"); !ok {
		t.Error("second round must chain over first-round conclusions")
	}
	if _, ok := s.Get("a", triple.RelatedTo, "a"); ok {
		t.Error("self relations are skipped")
	}
}
