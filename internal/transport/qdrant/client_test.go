package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/domain/search/filter"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{URL: srv.URL, APIKey: "secret", Collection: "kc", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{Collection: "kc"}); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("missing url: expected ErrInvalidSchema, got %v", err)
	}
	if _, err := NewClient(Config{URL: "http://q"}); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Errorf("missing collection: expected ErrInvalidSchema, got %v", err)
	}
}

func TestPointUUID(t *testing.T) {
	const u = "6f1c0a3e-8d53-4b9a-9f0e-2f6c1d1b7a10"
	if got := PointUUID(u); got != u {
		t.Errorf("uuid should pass through, got %s", got)
	}
	a, b := PointUUID("doc-1"), PointUUID("doc-1")
	if a != b {
		t.Errorf("expected deterministic id, got %s and %s", a, b)
	}
	if a == PointUUID("doc-2") {
		t.Error("distinct ids must map to distinct uuids")
	}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created bool
	var indexes []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/kc":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":{"error":"Not found: Collection kc doesn't exist"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kc":
			body := decodeBody(t, r)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"].(float64) != 768 || vectors["distance"] != "Cosine" {
				t.Errorf("unexpected vectors config: %v", vectors)
			}
			created = true
			w.Write([]byte(`{"result":true,"status":"ok"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/kc/index":
			indexes = append(indexes, decodeBody(t, r)["field_name"].(string))
			w.Write([]byte(`{"status":"ok"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	if err := c.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !created {
		t.Error("collection was not created")
	}
	if len(indexes) != 3 {
		t.Errorf("expected 3 payload indexes, got %v", indexes)
	}
}

func TestEnsureCollection_SizeMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":384,"distance":"Cosine"}}}}}`))
	})

	err := c.EnsureCollection(context.Background(), 768)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestInsert_MapsIDsAndKeepsCallerID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/kc/points" || r.URL.Query().Get("wait") != "true" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		body := decodeBody(t, r)
		pts := body["points"].([]any)
		p := pts[0].(map[string]any)
		if p["id"] != PointUUID("doc-1") {
			t.Errorf("id = %v", p["id"])
		}
		payload := p["payload"].(map[string]any)
		if payload[PayloadIDKey] != "doc-1" || payload["name"] != "a.md" {
			t.Errorf("payload = %v", payload)
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	err := c.Insert(context.Background(), []domain.Point{
		{ID: "doc-1", Vector: []float32{1, 0}, Payload: map[string]any{"name": "a.md"}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestSearch_TranslatesFilterAndThreshold(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/kc/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["score_threshold"].(float64) != 0.7 || body["limit"].(float64) != 10 {
			t.Errorf("unexpected body %v", body)
		}
		f := body["filter"].(map[string]any)
		should := f["should"].([]any)
		if len(should) != 2 {
			t.Fatalf("expected 2 should conditions, got %v", should)
		}
		first := should[0].(map[string]any)
		if first["key"] != "categories" || first["match"].(map[string]any)["value"] != "IA" {
			t.Errorf("unexpected should[0] %v", first)
		}
		mustNot := f["must_not"].([]any)[0].(map[string]any)
		if mustNot["key"] != "documentId" || mustNot["match"].(map[string]any)["value"] != "self" {
			t.Errorf("unexpected must_not %v", mustNot)
		}
		if _, ok := f["must"]; ok {
			t.Error("empty must group should be omitted")
		}
		w.Write([]byte(`{"result":[
			{"id":"` + PointUUID("n1") + `","score":0.91,"payload":{"pointId":"n1","analysisType":"Insight Estratégico"}},
			{"id":42,"score":0.8,"payload":{"analysisType":"Aprendizado Geral"}}
		]}`))
	})

	hits, err := c.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{
		Limit:          10,
		ScoreThreshold: 0.7,
		Filter:         filter.AnyOf("categories", []string{"IA", "Tech"}, "documentId", "self"),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "n1" || hits[0].Score != 0.91 {
		t.Errorf("unexpected first hit %+v", hits[0])
	}
	if _, ok := hits[0].Payload[PayloadIDKey]; ok {
		t.Error("internal id key leaked into payload")
	}
	if hits[1].ID != "42" {
		t.Errorf("numeric id = %q", hits[1].ID)
	}
}

func TestSearch_RangeFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f := decodeBody(t, r)["filter"].(map[string]any)
		cond := f["must"].([]any)[0].(map[string]any)
		rng := cond["range"].(map[string]any)
		if rng["gte"].(float64) != 0.5 || rng["lt"].(float64) != 0.9 {
			t.Errorf("unexpected range %v", rng)
		}
		if _, ok := cond["match"]; ok {
			t.Error("range condition must not carry match")
		}
		w.Write([]byte(`{"result":[]}`))
	})

	gte, lt := 0.5, 0.9
	rf, err := filter.NewRangeFilter(nil, &gte, &lt, nil)
	if err != nil {
		t.Fatal(err)
	}
	cond, err := filter.NewRange("analysisConfidence", rf)
	if err != nil {
		t.Fatal(err)
	}
	expr, err := filter.NewExpression([]filter.Condition{cond}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Search(context.Background(), []float32{1}, domain.SearchOptions{Filter: expr}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestScroll_PassesOffsetBack(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		body := decodeBody(t, r)
		if body["with_vector"] != true {
			t.Error("scroll must request vectors")
		}
		switch calls {
		case 1:
			if _, ok := body["offset"]; ok {
				t.Error("first page must not send offset")
			}
			w.Write([]byte(`{"result":{"points":[{"id":1,"vector":[1,0],"payload":{"pointId":"a"}}],"next_page_offset":"abc-uuid"}}`))
		case 2:
			if body["offset"] != "abc-uuid" {
				t.Errorf("offset = %v", body["offset"])
			}
			w.Write([]byte(`{"result":{"points":[{"id":2,"vector":[0,1],"payload":{"pointId":"b"}}],"next_page_offset":null}}`))
		}
	})

	page, err := c.Scroll(context.Background(), domain.ScrollRequest{Limit: 1})
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if page.Points[0].ID != "a" || page.NextOffset != `"abc-uuid"` {
		t.Fatalf("unexpected first page %+v", page)
	}
	page, err = c.Scroll(context.Background(), domain.ScrollRequest{Limit: 1, Offset: page.NextOffset})
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if page.Points[0].ID != "b" || page.NextOffset != "" {
		t.Fatalf("unexpected last page %+v", page)
	}
}

func TestScroll_InvalidOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})
	_, err := c.Scroll(context.Background(), domain.ScrollRequest{Offset: "not json"})
	if !errors.Is(err, domain.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestErrors_Classified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"bad request", http.StatusBadRequest, func(err error) bool { return errors.Is(err, domain.ErrInvalidSchema) }},
		{"server", http.StatusInternalServerError, func(err error) bool {
			var be *domain.BackendError
			return errors.As(err, &be) && be.Kind == domain.BackendServer && be.StatusCode == 500
		}},
		{"gateway timeout", http.StatusGatewayTimeout, func(err error) bool { return errors.Is(err, domain.ErrBackendTimeout) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"status":{"error":"nope"}}`))
			})
			_, err := c.Search(context.Background(), []float32{1}, domain.SearchOptions{})
			if !tt.check(err) {
				t.Errorf("unexpected classification: %v", err)
			}
		})
	}
}

func TestErrors_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(Config{URL: srv.URL, Collection: "kc", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Search(context.Background(), []float32{1}, domain.SearchOptions{})
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestErrors_Connection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close()

	c, err := NewClient(Config{URL: u, Collection: "kc"})
	if err != nil {
		t.Fatal(err)
	}
	err = c.Insert(context.Background(), []domain.Point{{ID: "a", Vector: []float32{1}}})
	var be *domain.BackendError
	if !errors.As(err, &be) || be.Kind != domain.BackendConnection {
		t.Fatalf("expected connection BackendError, got %v", err)
	}
}
