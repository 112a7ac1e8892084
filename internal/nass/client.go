package nass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/biocirv/agstats-cli/internal/refcache"
	"github.com/biocirv/agstats-cli/internal/resilience"
)

// DefaultBaseURL is the QuickStats GET endpoint.
const DefaultBaseURL = "https://quickstats.nass.usda.gov/api/api_GET"

// Querier is the read surface consumed by the ETL extract stage.
type Querier interface {
	Query(ctx context.Context, params QueryParams) ([]RawStatRecord, error)
}

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RequestsPerSec float64
}

// Client calls the QuickStats API with rate limiting and retry on
// transient failures.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	log        *zap.Logger
}

// NewClient builds a QuickStats client. apiKey is required by the API for
// every call.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		retry: resilience.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			OnRetry:     resilience.RetryLogger("nass", "query"),
		},
		log: zap.L().With(zap.String("component", "nass")),
	}
}

// Query runs one QuickStats query and returns its rows. An in-band API
// error object (the API reports bad parameters with HTTP 200 and an
// "error" key) is a hard failure for this call.
func (c *Client) Query(ctx context.Context, params QueryParams) ([]RawStatRecord, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]RawStatRecord, error) {
		return c.queryOnce(ctx, params)
	})
}

func (c *Client) queryOnce(ctx context.Context, params QueryParams) ([]RawStatRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nass: rate limit")
	}

	q := params.values()
	q.Set("key", c.apiKey)
	q.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nass: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nass: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nass: status %d: %s", resp.StatusCode, truncate(body, 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return decodeRecords(body)
}

// decodeRecords handles the three shapes QuickStats responds with: a
// {"data": [...]} envelope, a bare JSON array, or a {"error": ...} object.
func decodeRecords(body []byte) ([]RawStatRecord, error) {
	var envelope struct {
		Data  []RawStatRecord `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			return nil, eris.Errorf("nass: api error: %s", envelope.Error)
		}
		if envelope.Data != nil {
			return envelope.Data, nil
		}
	}

	var list []RawStatRecord
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	return nil, eris.Errorf("nass: unexpected response shape: %s", truncate(body, 200))
}

// ListCommodities returns the distinct commodities present in QuickStats
// for a state, deduplicated by code and sorted by name. It feeds the
// reference snapshot cache.
func (c *Client) ListCommodities(ctx context.Context, state string) ([]refcache.CommodityReference, error) {
	rows, err := c.Query(ctx, QueryParams{
		StateAlpha:   state,
		AggLevelDesc: "STATE",
	})
	if err != nil {
		return nil, eris.Wrap(err, "nass: list commodities")
	}

	seen := make(map[string]bool, len(rows))
	var refs []refcache.CommodityReference
	for _, row := range rows {
		code := row.CommodityCode
		if code == "" {
			code = row.CommodityDesc
		}
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		refs = append(refs, refcache.NewCommodityReference(code, row.CommodityDesc, row.ShortDesc, refcache.SourceNASS))
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	c.log.Debug("listed commodities", zap.String("state", state), zap.Int("count", len(refs)))
	return refs, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
