// Package report builds corpus statistics by scrolling the whole vector store.
package report

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
)

// DefaultPageSize is the scroll page size.
const DefaultPageSize = 100

// Payload keys read by the report. Older pipelines wrote snake_case variants.
var (
	fileKeys         = []string{"sourceFile", "file"}
	intelligenceKeys = []string{"intelligence_type", "intelligenceType"}
	enrichmentKeys   = []string{"enrichment_level", "enrichmentLevel"}
)

const (
	keyCategories  = "categories"
	keyChains      = "convergenceChains"
	keyScore       = "convergenceScore"
	keyChainID     = "chainId"
	keyParticipant = "participants"
)

var scoreRanges = []struct {
	name     string
	low, top float64
}{
	{"0-5", 0, 5},
	{"5-10", 5, 10},
	{"10-15", 10, 15},
	{"15-20", 15, 20},
	{"20+", 20, math.Inf(1)},
}

// Service builds corpus reports.
type Service struct {
	store    Scroller
	pageSize int
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a report service.
func New(store Scroller, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, pageSize: pageSize, now: time.Now, logger: logger}
}

// Build scrolls every point and aggregates the report.
func (s *Service) Build(ctx context.Context) (Report, error) {
	var (
		acc    accumulator
		offset string
		seen   = map[string]struct{}{}
	)
	acc.init()
	for {
		page, err := s.store.Scroll(ctx, domain.ScrollRequest{Limit: s.pageSize, Offset: offset})
		if err != nil {
			return Report{}, fmt.Errorf("scroll points: %w", err)
		}
		for i := range page.Points {
			acc.add(page.Points[i].Payload)
		}
		if page.NextOffset == "" {
			break
		}
		if _, loop := seen[page.NextOffset]; loop {
			return Report{}, fmt.Errorf("scroll offset %q repeated", page.NextOffset)
		}
		seen[page.NextOffset] = struct{}{}
		offset = page.NextOffset
	}

	r := acc.report()
	r.GeneratedAt = s.now().UTC()
	s.logger.Info("Corpus report built",
		zap.Int("points", r.TotalPoints),
		zap.Int("files", r.UniqueFiles),
		zap.Int("chains", r.Chains.Total),
	)
	return r, nil
}

type accumulator struct {
	total        int
	files        map[string]struct{}
	fields       map[string]struct{}
	categories   map[string]int
	intelligence map[string]int
	enrichment   map[string]int
	chainSizes   []int
	chainIDs     map[string]struct{}
	scores       []float64
	withFile     int
	withCats     int
	withIntel    int
	withChains   int
	withScore    int
}

func (a *accumulator) init() {
	a.files = map[string]struct{}{}
	a.fields = map[string]struct{}{}
	a.categories = map[string]int{}
	a.intelligence = map[string]int{}
	a.enrichment = map[string]int{}
	a.chainIDs = map[string]struct{}{}
}

func (a *accumulator) add(p map[string]any) {
	a.total++
	for k := range p {
		a.fields[k] = struct{}{}
	}

	if f, ok := firstString(p, fileKeys); ok {
		a.files[f] = struct{}{}
		a.withFile++
	}

	if v, ok := p[keyCategories]; ok {
		a.withCats++
		switch c := v.(type) {
		case string:
			a.categories[c]++
		default:
			for _, name := range domain.PayloadStrings(p, keyCategories) {
				a.categories[name]++
			}
		}
	}

	if t, ok := firstString(p, intelligenceKeys); ok {
		a.intelligence[t]++
		a.withIntel++
	}
	if l, ok := firstString(p, enrichmentKeys); ok {
		a.enrichment[l]++
	}

	if v, ok := p[keyChains]; ok {
		a.withChains++
		for _, c := range chainList(v) {
			if parts, ok := c[keyParticipant]; ok {
				a.chainSizes = append(a.chainSizes, listLen(parts))
			}
			if sc, ok := domain.PayloadFloat(c, keyScore); ok {
				a.scores = append(a.scores, sc)
			}
			if id := domain.PayloadString(c, keyChainID); id != "" {
				a.chainIDs[id] = struct{}{}
			}
		}
	}
	if _, ok := domain.PayloadFloat(p, keyScore); ok {
		a.withScore++
	}
}

func (a *accumulator) report() Report {
	return Report{
		TotalPoints:       a.total,
		UniqueFiles:       len(a.files),
		Files:             slices.Sorted(maps.Keys(a.files)),
		PayloadFields:     slices.Sorted(maps.Keys(a.fields)),
		Categories:        distribution(a.categories, a.total),
		IntelligenceTypes: distribution(a.intelligence, a.total),
		EnrichmentLevels:  distribution(a.enrichment, a.total),
		Chains:            chainStats(a.chainSizes, len(a.chainIDs)),
		Scores:            scoreStats(a.scores),
		Quality: Quality{
			WithFile:             percent(a.withFile, a.total),
			WithCategories:       percent(a.withCats, a.total),
			WithIntelligenceType: percent(a.withIntel, a.total),
			WithChains:           percent(a.withChains, a.total),
			WithScore:            percent(a.withScore, a.total),
		},
	}
}

func firstString(p map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if _, ok := p[k]; ok {
			return fmt.Sprint(p[k]), true
		}
	}
	return "", false
}

func chainList(v any) []map[string]any {
	switch cs := v.(type) {
	case []map[string]any:
		return cs
	case []any:
		out := make([]map[string]any, 0, len(cs))
		for _, c := range cs {
			if m, ok := c.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func listLen(v any) int {
	switch l := v.(type) {
	case []any:
		return len(l)
	case []string:
		return len(l)
	}
	return 0
}

// distribution sorts buckets by count descending, then by name.
func distribution(counts map[string]int, total int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n, Percent: percent(n, total)})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func chainStats(sizes []int, unique int) ChainStats {
	st := ChainStats{Total: len(sizes), Unique: unique, SizeDistribution: map[int]int{}}
	if len(sizes) == 0 {
		return st
	}
	fs := make([]float64, len(sizes))
	for i, n := range sizes {
		fs[i] = float64(n)
		st.SizeDistribution[n]++
	}
	st.MeanSize = round(mean(fs), 1)
	st.MedianSize = round(median(fs), 1)
	st.MaxSize = slices.Max(sizes)
	st.MinSize = slices.Min(sizes)
	return st
}

func scoreStats(scores []float64) ScoreStats {
	st := ScoreStats{Count: len(scores), Ranges: make([]ScoreRange, 0, len(scoreRanges))}
	for _, r := range scoreRanges {
		var in []float64
		for _, s := range scores {
			if s >= r.low && s < r.top {
				in = append(in, s)
			}
		}
		sr := ScoreRange{Name: r.name, Count: len(in)}
		if len(in) > 0 {
			sr.Mean = round(mean(in), 2)
		}
		st.Ranges = append(st.Ranges, sr)
	}
	if len(scores) == 0 {
		return st
	}
	st.Mean = round(mean(scores), 2)
	st.Median = round(median(scores), 2)
	st.Max = slices.Max(scores)
	st.Min = slices.Min(scores)
	st.StdDev = round(stdev(scores), 2)
	return st
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	s := slices.Sorted(slices.Values(xs))
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// stdev is the sample standard deviation; zero below two values.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(n)/float64(total)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
