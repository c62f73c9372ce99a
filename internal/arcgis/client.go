// Package arcgis queries ArcGIS-style feature service layers and decodes the
// results as GeoJSON feature collections.
package arcgis

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "plan-map/0.1 (github.com/sdmaps/plan-map)"

// Query describes one filtered attribute/geometry request against a layer
// endpoint, e.g. ".../FeatureServer/0".
type Query struct {
	URL            string
	Where          string
	OutFields      []string
	ReturnGeometry bool
}

// Client issues feature service queries. The zero value is not usable; use New.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit paces requests so bulk loads stay polite to public endpoints.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New creates a feature service client. Requests carry no timeout of their
// own; cancellation comes from the caller's context.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{},
		log:  zap.L().With(zap.String("component", "arcgis")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch runs the query and returns the decoded feature collection.
func (c *Client) Fetch(ctx context.Context, q Query) (*geojson.FeatureCollection, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "arcgis: rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL(q), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: fetch")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: read body")
	}
	if resp.StatusCode != http.StatusOK {
		snip := body
		if len(snip) > 200 {
			snip = snip[:200]
		}
		return nil, eris.Errorf("arcgis: HTTP %d from %s: %s", resp.StatusCode, q.URL, snip)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: decode feature collection")
	}

	c.log.Debug("query complete",
		zap.String("url", q.URL),
		zap.String("where", q.Where),
		zap.Int("features", len(fc.Features)),
		zap.Duration("took", time.Since(start)),
	)
	return fc, nil
}

// queryURL builds the /query request URL. An empty Where defaults to "1=1"
// because feature services reject an absent filter.
func queryURL(q Query) string {
	where := q.Where
	if where == "" {
		where = "1=1"
	}
	fields := "*"
	if len(q.OutFields) > 0 {
		fields = strings.Join(q.OutFields, ",")
	}

	v := url.Values{}
	v.Set("where", where)
	v.Set("outFields", fields)
	v.Set("returnGeometry", boolParam(q.ReturnGeometry))
	v.Set("outSR", "4326")
	v.Set("f", "geojson")

	return strings.TrimRight(q.URL, "/") + "/query?" + v.Encode()
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
