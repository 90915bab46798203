package convergence

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/consolidator/internal/domain"
	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
	domdoc "github.com/kailas-cloud/consolidator/internal/domain/document"
)

// docSet is the embedded subset of an analysis input.
// Positions index the similarity matrix; idx maps a position back to the input slice.
type docSet struct {
	docs []domdoc.Document
	idx  []int
	sim  [][]float64
	// pos maps a document id to its matrix position
	pos map[string]int
}

func newDocSet(docs []domdoc.Document, vectors [][]float32, analyzed []int) *docSet {
	m := len(analyzed)
	sim := make([][]float64, m)
	for i := range sim {
		sim[i] = make([]float64, m)
		sim[i][i] = 1
	}
	for i := range m {
		for j := i + 1; j < m; j++ {
			s := domain.CosineSimilarity(vectors[analyzed[i]], vectors[analyzed[j]])
			sim[i][j] = s
			sim[j][i] = s
		}
	}
	pos := make(map[string]int, m)
	for p, i := range analyzed {
		pos[docs[i].ID] = p
	}
	return &docSet{docs: docs, idx: analyzed, sim: sim, pos: pos}
}

func (s *docSet) size() int { return len(s.idx) }

func (s *docSet) doc(p int) *domdoc.Document { return &s.docs[s.idx[p]] }

func (s *docSet) id(p int) string { return s.docs[s.idx[p]].ID }

// component collects every eligible position reachable from start over edges >= threshold.
// Reached positions are marked visited.
func (s *docSet) component(start int, threshold float64, visited, eligible []bool) []int {
	visited[start] = true
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for next := range s.size() {
			if visited[next] || (eligible != nil && !eligible[next]) {
				continue
			}
			if s.sim[cur][next] >= threshold {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}

// meanPairwise is the mean similarity over distinct member pairs.
func (s *docSet) meanPairwise(members []int) float64 {
	var sum float64
	var n int
	for a := range members {
		for b := a + 1; b < len(members); b++ {
			sum += s.sim[members[a]][members[b]]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// center is the member with the highest average similarity to the rest. Ties keep the earlier member.
func (s *docSet) center(members []int) int {
	best, bestAvg := members[0], math.Inf(-1)
	for _, p := range members {
		var sum float64
		for _, q := range members {
			if p != q {
				sum += s.sim[p][q]
			}
		}
		avg := sum / float64(max(len(members)-1, 1))
		if avg > bestAvg {
			best, bestAvg = p, avg
		}
	}
	return best
}

// chain is a detected chain with matrix positions kept for later passes.
type chain struct {
	domconv.Chain
	members []int
	center  int
}

func (s *docSet) detectChains(opts Options) []chain {
	visited := make([]bool, s.size())
	var out []chain
	for p := range s.size() {
		if visited[p] {
			continue
		}
		members := s.component(p, opts.SimilarityThreshold, visited, nil)
		if len(members) < opts.MinChainLength {
			continue
		}
		c := chain{members: members, center: s.center(members)}
		c.ChainID = fmt.Sprintf("chain_%d", len(out)+1)
		c.Theme = s.theme(members)
		c.Strength = round4(s.meanPairwise(members))
		c.CenterDocument = s.id(c.center)
		c.TemporalSpan = s.temporalSpan(members)
		c.Participants = make([]string, len(members))
		for i, m := range members {
			c.Participants[i] = s.id(m)
		}
		out = append(out, c)
	}
	return out
}

// theme is the most frequent category, joined with the most frequent analysis type.
func (s *docSet) theme(members []int) string {
	var cats, types []string
	for _, p := range members {
		d := s.doc(p)
		cats = append(cats, d.Categories...)
		if d.AnalysisType != "" {
			types = append(types, d.AnalysisType)
		}
	}
	cat, typ := mostFrequent(cats), mostFrequent(types)
	switch {
	case cat != "" && typ != "":
		return cat + " / " + typ
	case cat != "":
		return cat
	case typ != "":
		return typ
	}
	return "Sem categoria"
}

// mostFrequent returns the most common value. Ties go to the value that reached the count first.
func mostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestN := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func (s *docSet) temporalSpan(members []int) domconv.TemporalSpan {
	var span domconv.TemporalSpan
	for _, p := range members {
		t := s.doc(p).ModifiedAt
		if t.IsZero() {
			continue
		}
		if span.Start.IsZero() || t.Before(span.Start) {
			span.Start = t
		}
		if span.End.IsZero() || t.After(span.End) {
			span.End = t
		}
	}
	if !span.Start.IsZero() {
		span.Days = round2(span.End.Sub(span.Start).Hours() / 24)
	}
	return span
}

// degree counts the other documents connected to p at the chain threshold.
func (s *docSet) degree(p int, threshold float64) int {
	n := 0
	for q := range s.size() {
		if q != p && s.sim[p][q] >= threshold {
			n++
		}
	}
	return n
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
