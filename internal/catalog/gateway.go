// Package catalog is the client for the external exercise catalog (wger).
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public wger API root.
const DefaultBaseURL = "https://wger.de/api/v2"

// Config holds gateway tunables.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Exercise is the subset of catalog metadata the backend relies on.
type Exercise struct {
	Ref      string          `json:"id"`
	Name     string          `json:"name"`
	Category json.RawMessage `json:"category,omitempty"`
	MET      *float64        `json:"met,omitempty"`
}

// METOrDefault returns the published MET value or fallback.
func (e Exercise) METOrDefault(fallback float64) float64 {
	if e.MET != nil && *e.MET > 0 {
		return *e.MET
	}
	return fallback
}

// Suggestion is the flattened autocomplete entry.
type Suggestion struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Category  json.RawMessage `json:"category"`
	Muscles   json.RawMessage `json:"muscles"`
	Equipment json.RawMessage `json:"equipment"`
}

// Gateway talks to the catalog over HTTP with an optional read-through cache.
type Gateway struct {
	baseURL  string
	client   *http.Client
	cache    Cache
	cacheTTL time.Duration
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithCache enables read-through caching of successful responses.
func WithCache(cache Cache) Option {
	return func(g *Gateway) {
		if cache != nil {
			g.cache = cache
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// NewGateway constructs a Gateway. It is safe for concurrent use.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	g := &Gateway{
		baseURL:  base,
		client:   &http.Client{Timeout: timeout},
		cache:    NoopCache{},
		cacheTTL: ttl,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetByID fetches one exercise. A 404 from the catalog yields an error
// matching ErrNotFound; anything else that fails matches ErrUnavailable.
func (g *Gateway) GetByID(ctx context.Context, ref string) (*Exercise, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &Error{Kind: KindNotFound, Op: "get_exercise", Err: errors.New("empty reference")}
	}

	body, err := g.get(ctx, "get_exercise", "/exercise/"+url.PathEscape(ref)+"/", nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Name     string          `json:"name"`
		Category json.RawMessage `json:"category"`
		MET      *float64        `json:"met"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Kind: KindUpstream, Op: "get_exercise", Err: fmt.Errorf("decode: %w", err)}
	}
	return &Exercise{Ref: ref, Name: raw.Name, Category: raw.Category, MET: raw.MET}, nil
}

type suggestionEnvelope struct {
	Suggestions []struct {
		Value string `json:"value"`
		Data  struct {
			ID        json.RawMessage `json:"id"`
			Name      string          `json:"name"`
			Category  json.RawMessage `json:"category"`
			Muscles   json.RawMessage `json:"muscles"`
			Equipment json.RawMessage `json:"equipment"`
		} `json:"data"`
	} `json:"suggestions"`
}

// Search queries the catalog's term search and flattens the suggestions.
func (g *Gateway) Search(ctx context.Context, term string) ([]Exercise, error) {
	body, err := g.get(ctx, "search", "/exercise/search/", url.Values{"term": {term}})
	if err != nil {
		return nil, err
	}

	var env suggestionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{Kind: KindUpstream, Op: "search", Err: fmt.Errorf("decode: %w", err)}
	}

	out := make([]Exercise, 0, len(env.Suggestions))
	for _, s := range env.Suggestions {
		name := s.Value
		if name == "" {
			name = s.Data.Name
		}
		out = append(out, Exercise{
			Ref:      strings.Trim(string(s.Data.ID), `"`),
			Name:     name,
			Category: s.Data.Category,
		})
	}
	return out, nil
}

// Autocomplete returns up to limit flattened suggestions. An envelope that
// does not carry a suggestions list yields an empty result, not an error.
func (g *Gateway) Autocomplete(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	body, err := g.get(ctx, "autocomplete", "/exercise/search/", url.Values{
		"term":  {term},
		"limit": {fmt.Sprint(limit)},
	})
	if err != nil {
		return nil, err
	}

	var env suggestionEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Suggestions == nil {
		return []Suggestion{}, nil
	}

	out := make([]Suggestion, 0, len(env.Suggestions))
	for _, s := range env.Suggestions {
		if len(out) == limit {
			break
		}
		out = append(out, Suggestion{
			ID:        s.Data.ID,
			Name:      s.Value,
			Category:  s.Data.Category,
			Muscles:   s.Data.Muscles,
			Equipment: s.Data.Equipment,
		})
	}
	return out, nil
}

// ListExercises passes the catalog's paginated exercise listing through.
func (g *Gateway) ListExercises(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return g.raw(ctx, "list_exercises", "/exercise/", query)
}

// ListCategories returns the catalog's exercise categories.
func (g *Gateway) ListCategories(ctx context.Context) (json.RawMessage, error) {
	return g.raw(ctx, "list_categories", "/exercisecategory/", nil)
}

// ListMuscles returns the catalog's muscle list.
func (g *Gateway) ListMuscles(ctx context.Context) (json.RawMessage, error) {
	return g.raw(ctx, "list_muscles", "/muscle/", nil)
}

// ListEquipment returns the catalog's equipment list.
func (g *Gateway) ListEquipment(ctx context.Context) (json.RawMessage, error) {
	return g.raw(ctx, "list_equipment", "/equipment/", nil)
}

func (g *Gateway) raw(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	body, err := g.get(ctx, op, path, query)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &Error{Kind: KindUpstream, Op: op, Err: errors.New("response is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

func (g *Gateway) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if body, ok := g.cache.Get(ctx, target); ok {
		cacheHits.WithLabelValues(op).Inc()
		return body, nil
	}

	start := time.Now()
	body, err := g.do(ctx, op, target)
	upstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		var ce *Error
		outcome := "error"
		if errors.As(err, &ce) {
			outcome = ce.Kind.String()
		}
		upstreamRequests.WithLabelValues(op, outcome).Inc()
		return nil, err
	}
	upstreamRequests.WithLabelValues(op, "ok").Inc()

	if json.Valid(body) {
		g.cache.Set(ctx, target, body, g.cacheTTL)
	}
	return body, nil
}

func (g *Gateway) do(ctx context.Context, op, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &Error{Kind: KindNotFound, Op: op, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &Error{Kind: KindUpstream, Op: op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Kind: KindUpstream, Op: op, Err: err}
	}
	return body, nil
}
