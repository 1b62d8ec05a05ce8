package window

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client queries the venue's read-only events API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a venue client against baseURL (e.g. the gamma-style
// events API root).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type gammaMarket struct {
	ID            string          `json:"id"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	Closed        bool            `json:"closed"`
	Volume        string          `json:"volume"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
}

type gammaEvent struct {
	Slug      string        `json:"slug"`
	Closed    bool          `json:"closed"`
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	Markets   []gammaMarket `json:"markets"`
}

// FetchBySlug fetches a single window by its exact event slug. Returns
// (Window{}, false, nil) when the venue has no such event, or when the slug
// fails validation. A non-nil error indicates a transient network/format
// failure; callers must tolerate both.
func (c *Client) FetchBySlug(ctx context.Context, slug string) (Window, bool, error) {
	if !IsValidSlug(slug) {
		return Window{}, false, nil
	}

	u := fmt.Sprintf("%s/events?%s", c.baseURL, url.Values{"slug": {slug}}.Encode())
	events, err := c.fetchEvents(ctx, u)
	if err != nil {
		return Window{}, false, err
	}
	if len(events) == 0 {
		return Window{}, false, nil
	}

	w, ok := parseEvent(events[0])
	return w, ok, nil
}

// FetchByMarketID fetches a single window by its venue market id, used as a
// fallback when a slug lookup comes back empty (e.g. the event aged out of
// the slug index but the market id is still resolvable).
func (c *Client) FetchByMarketID(ctx context.Context, marketID string) (Window, bool, error) {
	u := fmt.Sprintf("%s/events?%s", c.baseURL, url.Values{"markets": {marketID}}.Encode())
	events, err := c.fetchEvents(ctx, u)
	if err != nil {
		return Window{}, false, err
	}
	for _, e := range events {
		for _, m := range e.Markets {
			if m.ID == marketID {
				w, ok := parseEvent(e)
				return w, ok, nil
			}
		}
	}
	return Window{}, false, nil
}

// SearchActive fetches up to limit active, non-closed events whose slug
// contains the BTC 5-min prefix.
func (c *Client) SearchActive(ctx context.Context, limit int) ([]Window, error) {
	q := url.Values{
		"active":        {"true"},
		"closed":        {"false"},
		"slug_contains": {"btc-updown-5m"},
		"limit":         {strconv.Itoa(limit)},
	}
	u := fmt.Sprintf("%s/events?%s", c.baseURL, q.Encode())

	events, err := c.fetchEvents(ctx, u)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, len(events))
	for _, e := range events {
		w, ok := parseEvent(e)
		if !ok || !IsValidSlug(w.Slug) {
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (c *Client) fetchEvents(ctx context.Context, u string) ([]gammaEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("window: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("window: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("window: unexpected status %d", resp.StatusCode)
	}

	var events []gammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("window: decode: %w", err)
	}
	return events, nil
}

// parseEvent converts a gamma-style event into a Window. Parse failures
// default timestamps to now and prices to 0.5/0.5, matching the source's
// tolerant parsing policy; the caller still validates the slug.
func parseEvent(e gammaEvent) (Window, bool) {
	if len(e.Markets) == 0 {
		return Window{}, false
	}
	m := e.Markets[0]

	upPrice, downPrice := 0.5, 0.5
	if prices, ok := parseOutcomePrices(m.OutcomePrices); ok && len(prices) >= 2 {
		upPrice, downPrice = prices[0], prices[1]
	}

	now := time.Now().UTC()
	start := parseTimeOrDefault(e.StartDate, m.StartDate, now)
	end := parseTimeOrDefault(e.EndDate, m.EndDate, now)

	volume, _ := strconv.ParseFloat(m.Volume, 64)

	return Window{
		Slug:        e.Slug,
		MarketID:    m.ID,
		UpPrice:     upPrice,
		DownPrice:   downPrice,
		WindowStart: start,
		WindowEnd:   end,
		Volume:      volume,
		Closed:      m.Closed || e.Closed,
	}, true
}

// parseOutcomePrices decodes the gamma API's outcomePrices field, which
// varies by venue response shape: a JSON-encoded string of quoted numbers
// (`"[\"0.55\",\"0.45\"]"`), a bare JSON array, or an array of numbers
// rather than strings. All three are tried in turn.
func parseOutcomePrices(raw json.RawMessage) ([]float64, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}

	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		prices := make([]float64, 0, len(asStrings))
		for _, s := range asStrings {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, false
			}
			prices = append(prices, f)
		}
		return prices, true
	}

	var asFloats []float64
	if err := json.Unmarshal(raw, &asFloats); err == nil {
		return asFloats, true
	}

	return nil, false
}

func parseTimeOrDefault(primary, fallback string, def time.Time) time.Time {
	for _, s := range []string{primary, fallback} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	return def
}
