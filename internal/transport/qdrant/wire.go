package qdrant

import (
	"encoding/json"

	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
)

type wirePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Result []struct {
		ID      json.RawMessage `json:"id"`
		Score   float64         `json:"score"`
		Payload map[string]any  `json:"payload"`
	} `json:"result"`
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      json.RawMessage `json:"id"`
			Vector  []float32       `json:"vector"`
			Payload map[string]any  `json:"payload"`
		} `json:"points"`
		NextPageOffset json.RawMessage `json:"next_page_offset"`
	} `json:"result"`
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type wireCondition struct {
	Key   string         `json:"key"`
	Match *wireMatch     `json:"match,omitempty"`
	Range map[string]any `json:"range,omitempty"`
}

type wireMatch struct {
	Value string `json:"value"`
}

type wireFilter struct {
	Must    []wireCondition `json:"must,omitempty"`
	Should  []wireCondition `json:"should,omitempty"`
	MustNot []wireCondition `json:"must_not,omitempty"`
}

// buildFilter translates a filter expression to Qdrant's must/should/must_not form.
// Returns nil for an empty expression.
func buildFilter(expr filter.Expression) *wireFilter {
	if expr.IsEmpty() {
		return nil
	}
	return &wireFilter{
		Must:    toWire(expr.Must()),
		Should:  toWire(expr.Should()),
		MustNot: toWire(expr.MustNot()),
	}
}

func toWire(conds []filter.Condition) []wireCondition {
	if len(conds) == 0 {
		return nil
	}
	out := make([]wireCondition, 0, len(conds))
	for _, c := range conds {
		wc := wireCondition{Key: c.Key()}
		switch {
		case c.IsRange():
			wc.Range = rangeToWire(c.Range())
		case c.IsMatch():
			wc.Match = &wireMatch{Value: c.Match()}
		default:
			continue
		}
		out = append(out, wc)
	}
	return out
}

func rangeToWire(r *filter.Range) map[string]any {
	m := make(map[string]any, 2)
	if v := r.GT(); v != nil {
		m["gt"] = *v
	}
	if v := r.GTE(); v != nil {
		m["gte"] = *v
	}
	if v := r.LT(); v != nil {
		m["lt"] = *v
	}
	if v := r.LTE(); v != nil {
		m["lte"] = *v
	}
	return m
}
