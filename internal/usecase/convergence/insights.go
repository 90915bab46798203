package convergence

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
)

// insights derives ranked findings from chains, themes and cross-chain links.
// The order is by score, descending; equal scores keep generation order.
func (s *docSet) insights(
	chains []chain,
	themes []domconv.EmergentTheme,
	cross []domconv.CrossChainTheme,
	opts Options,
) []domconv.Insight {
	out := []domconv.Insight{}

	for _, c := range chains {
		if c.Strength > opts.StrongChain {
			out = append(out, domconv.Insight{
				Kind:  domconv.InsightStrongConvergence,
				Title: "Convergência forte: " + c.Theme,
				Description: fmt.Sprintf("%d documentos convergem com força %.2f em torno de %s",
					len(c.Participants), c.Strength, c.CenterDocument),
				Documents: slices.Clone(c.Participants),
				ChainID:   c.ChainID,
				Score:     c.Strength,
			})
		}
		if c.TemporalSpan.Days > opts.TemporalDays {
			out = append(out, domconv.Insight{
				Kind:  domconv.InsightTemporalEvolution,
				Title: "Evolução temporal: " + c.Theme,
				Description: fmt.Sprintf("O tema evoluiu ao longo de %.0f dias (%s a %s)",
					c.TemporalSpan.Days,
					c.TemporalSpan.Start.Format("2006-01-02"),
					c.TemporalSpan.End.Format("2006-01-02")),
				Documents: slices.Clone(c.Participants),
				ChainID:   c.ChainID,
				Score:     c.Strength,
			})
		}
	}

	for _, t := range themes {
		out = append(out, domconv.Insight{
			Kind:  domconv.InsightEmergentTheme,
			Title: "Tema emergente: " + strings.Join(t.Keywords, ", "),
			Description: fmt.Sprintf("%d documentos fora das cadeias formam um micro-cluster com coerência %.2f",
				len(t.Members), t.Coherence),
			Documents: slices.Clone(t.Members),
			Score:     t.Coherence,
		})
	}

	for _, c := range cross {
		docs := make([]string, 0, 2*len(c.Bridges))
		for _, b := range c.Bridges {
			for _, id := range []string{b.From, b.To} {
				if !slices.Contains(docs, id) {
					docs = append(docs, id)
				}
			}
		}
		out = append(out, domconv.Insight{
			Kind:  domconv.InsightCrossDomain,
			Title: "Convergência entre domínios: " + c.Name,
			Description: fmt.Sprintf("As cadeias %s e %s compartilham %d pontes (similaridade dos centros %.2f)",
				c.ChainA, c.ChainB, len(c.Bridges), c.Similarity),
			Documents: docs,
			Score:     c.Similarity,
		})
	}

	out = append(out, s.hubs(chains, opts)...)

	slices.SortStableFunc(out, func(a, b domconv.Insight) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// hubs flags chain participants whose connection count exceeds HubFactor times the mean.
func (s *docSet) hubs(chains []chain, opts Options) []domconv.Insight {
	type hub struct {
		pos    int
		degree int
	}
	seen := make(map[int]struct{})
	var participants []hub
	var total int
	for _, c := range chains {
		for _, p := range c.members {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			d := s.degree(p, opts.SimilarityThreshold)
			participants = append(participants, hub{pos: p, degree: d})
			total += d
		}
	}
	if len(participants) == 0 {
		return nil
	}
	mean := float64(total) / float64(len(participants))

	var hubs []hub
	for _, h := range participants {
		if float64(h.degree) > opts.HubFactor*mean {
			hubs = append(hubs, h)
		}
	}
	slices.SortStableFunc(hubs, func(a, b hub) int { return cmp.Compare(b.degree, a.degree) })
	if len(hubs) > opts.MaxHubs {
		hubs = hubs[:opts.MaxHubs]
	}

	out := make([]domconv.Insight, 0, len(hubs))
	for _, h := range hubs {
		d := s.doc(h.pos)
		out = append(out, domconv.Insight{
			Kind:  domconv.InsightKnowledgeHub,
			Title: "Hub de conhecimento: " + d.Name,
			Description: fmt.Sprintf("%s conecta %d documentos (média %.1f)",
				d.Name, h.degree, mean),
			Documents: []string{d.ID},
			Score:     round4(float64(h.degree) / float64(max(s.size()-1, 1))),
		})
	}
	return out
}
