package tesla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
)

const (
	defaultInventoryURL = "https://www.tesla.com/inventory/api/v4/inventory-results"

	// The inventory API sits behind bot protection that rejects
	// obvious non-browser clients, so requests carry a desktop
	// Chrome identity.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
)

// europeanMarkets selects the super_region sent with inventory
// queries.
var europeanMarkets = map[string]bool{
	"ES": true, "FR": true, "DE": true, "IT": true,
	"NL": true, "NO": true, "SE": true,
}

// InventorySearcher runs public inventory queries.
type InventorySearcher interface {
	Search(ctx context.Context, q InventoryQuery) ([]Vehicle, error)
}

// InventoryQuery describes one inventory search. Trim is optional; an
// empty trim searches the whole lineup for the model.
type InventoryQuery struct {
	Model     string
	Condition string
	Market    string
	Trim      string
}

// Geo anchors inventory queries to a location, which the API requires
// even for market-wide searches.
type Geo struct {
	Lat float64
	Lng float64
	Zip string
}

// InventoryClient queries the public Tesla inventory API. Unlike the
// owner API this endpoint needs no authentication, but it rate-limits
// aggressively, so all calls go through a shared limiter.
type InventoryClient struct {
	baseURL string
	geo     Geo
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// InventoryOption configures the InventoryClient.
type InventoryOption func(*InventoryClient)

// WithInventoryURL overrides the inventory API endpoint.
func WithInventoryURL(u string) InventoryOption {
	return func(c *InventoryClient) {
		c.baseURL = u
	}
}

// WithGeo sets the location anchor for queries.
func WithGeo(g Geo) InventoryOption {
	return func(c *InventoryClient) {
		c.geo = g
	}
}

// WithInventoryHTTPClient overrides the default HTTP client. Use this
// to route queries through a residential proxy when the data-center
// egress IP gets blocked.
func WithInventoryHTTPClient(hc *http.Client) InventoryOption {
	return func(c *InventoryClient) {
		c.client = hc
	}
}

// WithRateLimit caps outgoing queries at perSecond with the given
// burst.
func WithRateLimit(perSecond float64, burst int) InventoryOption {
	return func(c *InventoryClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithInventoryLogger sets the logger for the client.
func WithInventoryLogger(l *slog.Logger) InventoryOption {
	return func(c *InventoryClient) {
		c.logger = l
	}
}

// NewInventoryClient creates an inventory API client with Madrid as
// the default location anchor.
func NewInventoryClient(opts ...InventoryOption) *InventoryClient {
	c := &InventoryClient{
		baseURL: defaultInventoryURL,
		geo:     Geo{Lat: 40.4168, Lng: -3.7038, Zip: "28001"},
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewProxyTransport builds an HTTP client that routes through the
// given proxy URL, for use with WithInventoryHTTPClient.
func NewProxyTransport(proxyURL string, timeout time.Duration) (*http.Client, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}, nil
}

type inventoryPayload struct {
	Query        inventoryQuery `json:"query"`
	Offset       int            `json:"offset"`
	Count        int            `json:"count"`
	OutsideOff   int            `json:"outsideOffset"`
	OutsideSrch  bool           `json:"outsideSearch"`
	FalconSelect bool           `json:"isFalconDeliverySelectionEnabled"`
	Version      string         `json:"version"`
}

type inventoryQuery struct {
	Model       string              `json:"model"`
	Condition   string              `json:"condition"`
	Options     map[string][]string `json:"options"`
	ArrangeBy   string              `json:"arrangeby"`
	Order       string              `json:"order"`
	Market      string              `json:"market"`
	Language    string              `json:"language"`
	SuperRegion string              `json:"super_region"`
	Lng         float64             `json:"lng"`
	Lat         float64             `json:"lat"`
	Zip         string              `json:"zip"`
	Range       int                 `json:"range"`
	Region      string              `json:"region"`
}

type inventoryResponse struct {
	Results []Vehicle `json:"results"`
}

// Search queries the inventory API and returns the raw result set,
// cheapest first. Callers filter against subscriber criteria
// separately so one fetch can serve many watches.
func (c *InventoryClient) Search(
	ctx context.Context,
	q InventoryQuery,
) ([]Vehicle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	metrics.InventoryFetchesTotal.Inc()

	payload := c.buildPayload(q)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding inventory query: %w", err)
	}

	params := url.Values{"query": {string(encoded)}}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"?"+params.Encode(),
		http.NoBody,
	)
	if err != nil {
		return nil, fmt.Errorf("creating inventory request: %w", err)
	}

	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Origin", "https://www.tesla.com")
	req.Header.Set("Referer", c.refererFor(q))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing inventory request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading inventory response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var apiResp inventoryResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing inventory response: %w", err)
	}

	c.logger.Debug("inventory fetched",
		"market", q.Market,
		"model", q.Model,
		"results", len(apiResp.Results),
	)
	return apiResp.Results, nil
}

func (c *InventoryClient) buildPayload(q InventoryQuery) inventoryPayload {
	options := map[string][]string{}
	if q.Trim != "" {
		options["TRIM"] = []string{q.Trim}
	}

	language := "en"
	if q.Market == "ES" {
		language = "es"
	}

	superRegion := "north america"
	if europeanMarkets[q.Market] {
		superRegion = "europe"
	}

	return inventoryPayload{
		Query: inventoryQuery{
			Model:       q.Model,
			Condition:   q.Condition,
			Options:     options,
			ArrangeBy:   "Price",
			Order:       "asc",
			Market:      q.Market,
			Language:    language,
			SuperRegion: superRegion,
			Lng:         c.geo.Lng,
			Lat:         c.geo.Lat,
			Zip:         c.geo.Zip,
			Range:       0,
			Region:      q.Market,
		},
		Offset:       0,
		Count:        50,
		OutsideOff:   0,
		OutsideSrch:  false,
		FalconSelect: true,
		Version:      "v2",
	}
}

// refererFor reconstructs the browser inventory page URL the API call
// would originate from.
func (c *InventoryClient) refererFor(q InventoryQuery) string {
	locale := strings.ToLower(q.Market) + "_" + q.Market
	return fmt.Sprintf(
		"https://www.tesla.com/%s/inventory/%s/%s?arrangeby=plh&zip=%s&range=0",
		locale, q.Condition, q.Model, url.QueryEscape(c.geo.Zip),
	)
}
