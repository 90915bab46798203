package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/consolidator/internal/db"
	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
)

// VectorField is the hash field holding a point embedding.
const VectorField = "vector"

// scoreField is the distance column FT.SEARCH adds to KNN hits.
const scoreField = "__vector_score"

// SearchKNN runs a DIALECT 2 KNN query with the filter as a pre-filter.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.Index == "":
		return nil, errors.New("knn: index is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: vector is required")
	case q.K <= 0:
		return nil, errors.New("knn: k must be positive")
	}

	pre := "*"
	if f := filterQuery(q.Filter); f != "" {
		pre = "(" + f + ")"
	}
	args := []string{q.Index, fmt.Sprintf("%s=>[KNN %d @%s $vec]", pre, q.K, VectorField)}
	if len(q.Fields) > 0 {
		args = appendReturn(args, slices.Concat(q.Fields, []string{scoreField}))
	}
	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "vec", vectorBlob(q.Vector),
		"DIALECT", "2",
	)
	return s.search(ctx, q.Index, args, true)
}

// SearchList pages through index matches of query.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	args := []string{index, query, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)}
	args = appendReturn(args, fields)
	return s.search(ctx, index, args, false)
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

func (s *Store) search(ctx context.Context, index string, args []string, knn bool) (*db.SearchResult, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, fail(db.OpSearch, index, err)
	}
	res, err := parseSearchReply(raw, knn)
	if err != nil {
		return nil, fail(db.OpSearch, index, err)
	}
	return res, nil
}

// parseSearchReply reads the RESP2 layout [total, key, [field, value, ...], key, ...].
// For KNN replies the cosine distance becomes a similarity clamped to [0, 1].
func parseSearchReply(raw []rueidis.RedisMessage, knn bool) (*db.SearchResult, error) {
	res := &db.SearchResult{}
	if len(raw) == 0 {
		return res, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	res.Total = int(total)

	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		e := db.SearchEntry{Key: key, Fields: make(map[string]string, len(pairs)/2)}
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr == nil && verr == nil {
				e.Fields[name] = value
			}
		}
		if knn {
			if d, err := strconv.ParseFloat(e.Fields[scoreField], 64); err == nil {
				e.Score = min(1, max(0, 1-d))
			}
			delete(e.Fields, scoreField)
		}
		res.Entries = append(res.Entries, e)
	}
	return res, nil
}

// filterQuery renders an expression in query syntax: must clauses are ANDed,
// should clauses form one OR group and must-not clauses are negated.
func filterQuery(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	var parts []string
	for _, c := range expr.Must() {
		parts = append(parts, condition(c))
	}
	if should := expr.Should(); len(should) > 0 {
		alts := make([]string, len(should))
		for i, c := range should {
			alts[i] = condition(c)
		}
		parts = append(parts, "("+strings.Join(alts, " | ")+")")
	}
	for _, c := range expr.MustNot() {
		parts = append(parts, "-"+condition(c))
	}
	return strings.Join(parts, " ")
}

func condition(c filter.Condition) string {
	switch {
	case c.IsMatch():
		return "@" + c.Key() + ":{" + escapeTag(c.Match()) + "}"
	case c.IsRange():
		r := c.Range()
		return fmt.Sprintf("@%s:[%s %s]", c.Key(),
			bound(r.GT(), r.GTE(), "-inf"), bound(r.LT(), r.LTE(), "+inf"))
	default:
		return ""
	}
}

// bound renders a numeric range end; exclusive bounds take a "(" prefix.
func bound(exclusive, inclusive *float64, open string) string {
	switch {
	case exclusive != nil:
		return "(" + strconv.FormatFloat(*exclusive, 'g', -1, 64)
	case inclusive != nil:
		return strconv.FormatFloat(*inclusive, 'g', -1, 64)
	default:
		return open
	}
}

// escapeTag backslash-escapes every rune that is not a letter, digit or underscore,
// so category names with spaces or punctuation match literally.
func escapeTag(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// vectorBlob packs a vector as little-endian FLOAT32 bytes.
func vectorBlob(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
