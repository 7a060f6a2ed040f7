package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/infrastructure/resilience"
)

const (
	serviceName      = "qdrant"
	defaultBatchSize = 64
	payloadPassageID = "passage_id"
)

// pointNamespace derives stable point ids from passage ids so rebuilds overwrite instead of duplicating.
var pointNamespace = uuid.MustParse("5b7c52f4-6f0e-4a53-9d8e-3f1c2a0b9e71")

// Client talks to the Qdrant REST API. It is shared by the dense and sparse indexes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type point struct {
	ID      string         `json:"id"`
	Vector  any            `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func pointID(passageID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(passageID)).String()
}

// pointCount reports the number of points in a collection; exists is false on 404.
func (c *Client) pointCount(ctx context.Context, collection string) (count int, exists bool, err error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	err = c.call(ctx, http.MethodGet, "/collections/"+collection, nil, &resp, "get_collection")
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return resp.Result.PointsCount, true, nil
}

// collectionComplete reports whether a collection holds a finished build. Point ids derive
// from passage ids, so a complete build has exactly expected points; expected <= 0 accepts any
// non-empty collection.
func (c *Client) collectionComplete(ctx context.Context, collection string, expected int) (bool, error) {
	count, exists, err := c.pointCount(ctx, collection)
	if err != nil || !exists {
		return false, err
	}
	if expected > 0 && count != expected {
		slog.Warn("qdrant_collection_incomplete", "collection", collection, "points", count, "expected", expected)
		return false, nil
	}
	return count > 0, nil
}

// recreateCollection drops any previous collection so a rebuild never mixes stale points.
func (c *Client) recreateCollection(ctx context.Context, collection string, schema map[string]any) error {
	err := c.call(ctx, http.MethodDelete, "/collections/"+collection, nil, nil, "delete_collection")
	var statusErr *resilience.HTTPStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound) {
		return err
	}
	return c.call(ctx, http.MethodPut, "/collections/"+collection, schema, nil, "create_collection")
}

func (c *Client) upsert(ctx context.Context, collection string, points []point) error {
	if len(points) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	return c.call(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) search(ctx context.Context, collection string, body map[string]any) ([]scoredPoint, error) {
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp, "search"); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) query(ctx context.Context, collection string, body map[string]any) ([]scoredPoint, error) {
	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, "/collections/"+collection+"/points/query", body, &resp, "query"); err != nil {
		return nil, err
	}
	return resp.Result.Points, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any, out any, operation string) error {
	err := c.executor.Execute(ctx, "qdrant."+operation, func(callCtx context.Context) error {
		return c.do(callCtx, method, path, payload, out, operation)
	}, classifyQdrantError)
	return resilience.MarkTemporary("qdrant "+operation, err, classifyQdrantError)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(serviceName, operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTP(err)
}

func hitsFromPoints(points []scoredPoint) []domain.RetrievalHit {
	out := make([]domain.RetrievalHit, 0, len(points))
	for _, p := range points {
		id := getStringPayload(p.Payload, payloadPassageID)
		if id == "" {
			continue
		}
		out = append(out, domain.RetrievalHit{PassageID: id, Score: p.Score})
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
