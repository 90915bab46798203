package triples

import (
	"strings"

	"github.com/kailas-cloud/consolidator/internal/domain/triple"
)

// MaxInferenceRounds bounds chained inference.
const MaxInferenceRounds = 3

// Pattern is a triple template. Terms starting with "?" are variables.
type Pattern struct {
	Subject   string
	Predicate string
	Object    string
}

// Rule derives Then whenever every When pattern matches under one binding.
type Rule struct {
	Name       string
	When       []Pattern
	Then       Pattern
	Confidence float64
}

// DefaultRules returns the built-in inference rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "transitive-evolution",
			When: []Pattern{
				{"?a", triple.EvolvedFrom, "?b"},
				{"?b", triple.EvolvedFrom, "?c"},
			},
			Then:       Pattern{"?a", triple.DerivedFrom, "?c"},
			Confidence: 0.5,
		},
		{
			Name: "category-and-time",
			When: []Pattern{
				{"?a", triple.SharesCategoryWith, "?b"},
				{"?a", triple.FollowsTemporally, "?b"},
			},
			Then:       Pattern{"?a", triple.RelatedTo, "?b"},
			Confidence: 0.75,
		},
		{
			Name: "category-and-time-reverse",
			When: []Pattern{
				{"?a", triple.SharesCategoryWith, "?b"},
				{"?b", triple.FollowsTemporally, "?a"},
			},
			Then:       Pattern{"?b", triple.RelatedTo, "?a"},
			Confidence: 0.75,
		},
	}
}

type binding map[string]string

func isVar(term string) bool { return strings.HasPrefix(term, "?") }

// unify extends b so that term equals value; ok is false on conflict.
func unify(b binding, term, value string) (binding, bool) {
	if !isVar(term) {
		return b, term == value
	}
	if bound, ok := b[term]; ok {
		return b, bound == value
	}
	next := make(binding, len(b)+1)
	for k, v := range b {
		next[k] = v
	}
	next[term] = value
	return next, true
}

func resolve(b binding, term string) (string, bool) {
	if !isVar(term) {
		return term, true
	}
	v, ok := b[term]
	return v, ok
}

func (r Rule) bindings(facts []triple.Triple) []binding {
	current := []binding{{}}
	for _, p := range r.When {
		var next []binding
		for _, b := range current {
			for i := range facts {
				f := &facts[i]
				nb, ok := unify(b, p.Subject, f.SubjectValue())
				if !ok {
					continue
				}
				if nb, ok = unify(nb, p.Predicate, f.PredicateValue()); !ok {
					continue
				}
				if nb, ok = unify(nb, p.Object, f.ObjectValue()); !ok {
					continue
				}
				next = append(next, nb)
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// Infer applies the rules until nothing new is derived or MaxInferenceRounds is reached.
// It returns the number of triples added; a second call on an unchanged store adds none.
func (s *Store) Infer() int {
	added := 0
	for range MaxInferenceRounds {
		facts := s.ExportAll()
		round := 0
		for _, r := range s.rules {
			for _, b := range r.bindings(facts) {
				subj, ok1 := resolve(b, r.Then.Subject)
				pred, ok2 := resolve(b, r.Then.Predicate)
				obj, ok3 := resolve(b, r.Then.Object)
				if !ok1 || !ok2 || !ok3 || subj == obj {
					continue
				}
				md := triple.Metadata{
					Source:     triple.SourceInference,
					Confidence: r.Confidence,
					Fields:     map[string]any{"rule": r.Name},
				}
				if _, ok := s.Add(subj, pred, obj, md); ok {
					round++
				}
			}
		}
		added += round
		if round == 0 {
			break
		}
	}
	return added
}
