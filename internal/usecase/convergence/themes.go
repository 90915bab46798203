package convergence

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	domconv "github.com/kailas-cloud/consolidator/internal/domain/convergence"
)

// Keyword extraction limits for emergent themes.
const (
	MaxThemeKeywords = 5
	MinKeywordLength = 4
	// MaxBridges bounds the bridge list of one cross-chain theme.
	MaxBridges = 10
)

var stopwords = func() map[string]struct{} {
	words := []string{
		// pt
		"para", "como", "mais", "pelo", "pela", "pelos", "pelas", "esta", "este", "isto",
		"essa", "esse", "isso", "aquele", "aquela", "sobre", "entre", "quando", "onde",
		"também", "ainda", "mesmo", "muito", "muitos", "cada", "todo", "toda", "todos",
		"todas", "outro", "outra", "qual", "quais", "será", "seria", "foram", "sendo",
		"pode", "podem", "deve", "devem", "após", "antes", "depois", "nosso", "nossa",
		"seus", "suas", "dele", "dela", "porque", "então", "assim", "apenas", "desde",
		"numa", "num", "está", "estão", "estava", "fazer", "feito", "temos", "têm",
		// en
		"that", "this", "with", "from", "have", "will", "would", "there", "their", "they",
		"them", "then", "than", "what", "when", "where", "which", "while", "about", "into",
		"more", "most", "some", "such", "only", "other", "over", "also", "been", "were",
		"being", "each", "just", "like", "very", "your", "ours", "should", "could", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// emergentThemes clusters documents outside every chain with the looser emergent threshold.
func (s *docSet) emergentThemes(chains []chain, opts Options) []domconv.EmergentTheme {
	eligible := make([]bool, s.size())
	for p := range eligible {
		eligible[p] = true
	}
	for _, c := range chains {
		for _, p := range c.members {
			eligible[p] = false
		}
	}

	threshold := opts.SimilarityThreshold * opts.EmergentFactor
	visited := make([]bool, s.size())
	themes := []domconv.EmergentTheme{}
	for p := range s.size() {
		if visited[p] || !eligible[p] {
			continue
		}
		members := s.component(p, threshold, visited, eligible)
		if len(members) < 2 {
			continue
		}
		theme := domconv.EmergentTheme{
			ID:        fmt.Sprintf("theme_%d", len(themes)+1),
			Members:   make([]string, len(members)),
			Keywords:  s.keywords(members),
			Coherence: round4(s.meanPairwise(members)),
		}
		for i, m := range members {
			theme.Members[i] = s.id(m)
		}
		themes = append(themes, theme)
	}
	return themes
}

// keywords ranks stopword-filtered words of the members by frequency.
func (s *docSet) keywords(members []int) []string {
	counts := make(map[string]int)
	for _, p := range members {
		d := s.doc(p)
		text := strings.Join([]string{d.Name, d.Summary, d.Excerpt()}, " ")
		for _, w := range tokenize(text) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(words) > MaxThemeKeywords {
		words = words[:MaxThemeKeywords]
	}
	return words
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < MinKeywordLength || isNumeric(f) {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// crossChainThemes links chain pairs whose centers are close and lists their bridges.
func (s *docSet) crossChainThemes(chains []chain, opts Options) []domconv.CrossChainTheme {
	centerThreshold := opts.SimilarityThreshold * opts.CrossChainFactor
	bridgeThreshold := opts.SimilarityThreshold * opts.BridgeFactor

	out := []domconv.CrossChainTheme{}
	for i := range chains {
		for j := i + 1; j < len(chains); j++ {
			a, b := chains[i], chains[j]
			sim := s.sim[a.center][b.center]
			if sim < centerThreshold {
				continue
			}
			out = append(out, domconv.CrossChainTheme{
				Name:       a.Theme + " ↔ " + b.Theme,
				ChainA:     a.ChainID,
				ChainB:     b.ChainID,
				Similarity: round4(sim),
				Bridges:    s.bridges(a, b, bridgeThreshold),
			})
		}
	}
	return out
}

func (s *docSet) bridges(a, b chain, threshold float64) []domconv.Bridge {
	out := []domconv.Bridge{}
	for _, p := range a.members {
		for _, q := range b.members {
			if sim := s.sim[p][q]; sim >= threshold {
				out = append(out, domconv.Bridge{From: s.id(p), To: s.id(q), Similarity: round4(sim)})
			}
		}
	}
	slices.SortStableFunc(out, func(x, y domconv.Bridge) int {
		return cmp.Compare(y.Similarity, x.Similarity)
	})
	if len(out) > MaxBridges {
		out = out[:MaxBridges]
	}
	return out
}
