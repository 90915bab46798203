// Package qdrant implements domain.VectorStore over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/version"
)

const (
	backendName = "qdrant"

	// PayloadIDKey holds the caller's point ID; Qdrant only accepts UUIDs and integers.
	PayloadIDKey = "pointId"

	defaultTimeout = 30 * time.Second
)

// pointNamespace scopes deterministic point UUIDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("consolidator/points"))

// Config holds the Qdrant connection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client is a minimal REST client to one Qdrant collection.
// It assumes cosine distance.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	timeout    time.Duration
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a Qdrant client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required: %w", domain.ErrInvalidSchema)
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required: %w", domain.ErrInvalidSchema)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		timeout:    timeout,
		http:       &http.Client{},
		logger:     log,
	}, nil
}

// PointUUID returns the Qdrant point ID for a caller ID.
// UUIDs pass through; anything else maps to a stable SHA-1 UUID.
func PointUUID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// EnsureCollection creates the collection with cosine distance if it does not exist,
// plus keyword payload indexes for the filterable fields.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d: %w", dimension, domain.ErrInvalidSchema)
	}

	var info collectionInfo
	err := c.do(ctx, http.MethodGet, c.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size > 0 && size != dimension {
			return fmt.Errorf("collection %s has size %d, want %d: %w",
				c.collection, size, dimension, domain.ErrVectorDimMismatch)
		}
		return nil
	case !errors.Is(err, errCollectionMissing):
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionPath(""), body, nil); err != nil {
		return err
	}
	for _, field := range []string{"documentId", "categories", "analysisType"} {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := c.do(ctx, http.MethodPut, c.collectionPath("/index?wait=true"), idx, nil); err != nil {
			return err
		}
	}
	c.logger.Info("Qdrant collection created",
		zap.String("collection", c.collection),
		zap.Int("dimension", dimension),
	)
	return nil
}

// Insert upserts points and waits for the write to be applied.
func (c *Client) Insert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]wirePoint, len(points))
	for i, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload[PayloadIDKey] = p.ID
		wire[i] = wirePoint{ID: PointUUID(p.ID), Vector: p.Vector, Payload: payload}
	}
	return c.do(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), map[string]any{"points": wire}, nil)
}

// Delete removes points by caller ID.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wireIDs := make([]string, len(ids))
	for i, id := range ids {
		wireIDs[i] = PointUUID(id)
	}
	return c.do(ctx, http.MethodPost, c.collectionPath("/points/delete?wait=true"),
		map[string]any{"points": wireIDs}, nil)
}

// Search returns the nearest points above ScoreThreshold that match the filter.
func (c *Client) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredPoint, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if opts.ScoreThreshold > 0 {
		req["score_threshold"] = opts.ScoreThreshold
	}
	if f := buildFilter(opts.Filter); f != nil {
		req["filter"] = f
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.ScoredPoint{
			ID:      callerID(r.ID, r.Payload),
			Score:   r.Score,
			Payload: stripID(r.Payload),
		})
	}
	return hits, nil
}

// Scroll pages through points. The offset is Qdrant's next_page_offset, passed back verbatim.
func (c *Client) Scroll(ctx context.Context, sr domain.ScrollRequest) (domain.ScrollPage, error) {
	limit := sr.Limit
	if limit <= 0 {
		limit = 100
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if sr.Offset != "" {
		if !json.Valid([]byte(sr.Offset)) {
			return domain.ScrollPage{}, fmt.Errorf("invalid scroll offset %q: %w", sr.Offset, domain.ErrInvalidSchema)
		}
		req["offset"] = json.RawMessage(sr.Offset)
	}
	if f := buildFilter(sr.Filter); f != nil {
		req["filter"] = f
	}

	var resp scrollResponse
	if err := c.do(ctx, http.MethodPost, c.collectionPath("/points/scroll"), req, &resp); err != nil {
		return domain.ScrollPage{}, err
	}
	page := domain.ScrollPage{Points: make([]domain.Point, 0, len(resp.Result.Points))}
	for _, p := range resp.Result.Points {
		page.Points = append(page.Points, domain.Point{
			ID:      callerID(p.ID, p.Payload),
			Vector:  p.Vector,
			Payload: stripID(p.Payload),
		})
	}
	if next := resp.Result.NextPageOffset; len(next) > 0 && string(next) != "null" {
		page.NextOffset = string(next)
	}
	return page, nil
}

// HealthCheck verifies that the collection is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.collectionPath(""), nil, nil)
}

func (c *Client) collectionPath(suffix string) string {
	return c.baseURL + "/collections/" + url.PathEscape(c.collection) + suffix
}

var errCollectionMissing = errors.New("collection missing")

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(method, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewBackendError(backendName, domain.BackendServer, resp.StatusCode,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) statusError(method string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Status.Error != "" {
		msg = body.Status.Error
	}
	detail := fmt.Errorf("%s %s: %s", method, resp.Request.URL.Path, msg)

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return fmt.Errorf("%w: %w", errCollectionMissing, detail)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("qdrant rejected request: %w: %w", detail, domain.ErrInvalidSchema)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return domain.NewBackendError(backendName, domain.BackendTimeout, resp.StatusCode, detail)
	default:
		return domain.NewBackendError(backendName, domain.BackendServer, resp.StatusCode, detail)
	}
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackendError(backendName, domain.BackendTimeout, 0, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("qdrant request: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewBackendError(backendName, domain.BackendTimeout, 0, err)
	}
	return domain.NewBackendError(backendName, domain.BackendConnection, 0, err)
}

func callerID(raw json.RawMessage, payload map[string]any) string {
	if id := domain.PayloadString(payload, PayloadIDKey); id != "" {
		return id
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func stripID(payload map[string]any) map[string]any {
	delete(payload, PayloadIDKey)
	return payload
}
