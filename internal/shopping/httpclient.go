package shopping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider is the default Provider: a plain HTTP client sending the
// search query as a GET to a configurable upstream and decoding a JSON array of
// results. Site-specific scraping logic is out of scope (spec.md §1); this
// is the "plain HTTP client" the spec assumes exists.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds the default shopping provider with a 30s timeout,
// matching spec.md §5's suggested outbound deadline.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type searchResultWire struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	PriceCents int64   `json:"price_cents"`
	Currency   string  `json:"currency"`
	Relevance  float64 `json:"relevance"`
	Condition  string  `json:"condition"`
	SourceSite string  `json:"source_site"`
}

// Search sends the query as GET parameters to baseURL/search and decodes
// the response.
func (p *HTTPProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	endpoint := p.baseURL + "/search"
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("category", q.Category)
	params.Set("locale", q.Locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build shopping request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopping search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopping search returned status %d", resp.StatusCode)
	}

	var wire []searchResultWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode shopping response: %w", err)
	}

	results := make([]Result, 0, len(wire))
	for _, w := range wire {
		results = append(results, Result{
			Title:      w.Title,
			URL:        w.URL,
			PriceCents: w.PriceCents,
			Currency:   w.Currency,
			Relevance:  w.Relevance,
			Condition:  w.Condition,
			SourceSite: w.SourceSite,
		})
	}
	return results, nil
}
