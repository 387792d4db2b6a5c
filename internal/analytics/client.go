// Package analytics pulls daily search performance stats for the site's
// pages from the search-console export endpoint.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"content-radar/internal/model"

	"golang.org/x/time/rate"
)

// Config describes the stats endpoint and client-side throttle.
type Config struct {
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	SiteURL           string  `yaml:"site_url" json:"site_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// Client fetches per-page daily stats. Requests are throttled client-side so
// a refresh burst stays inside the API quota.
type Client struct {
	baseURL string
	siteURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient creates a Client; a nil http.Client falls back to the default.
func NewClient(cfg Config, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		siteURL: cfg.SiteURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  log.New(os.Stdout, "[analytics] ", log.LstdFlags),
	}
}

// pageStat mirrors one row of the export payload.
type pageStat struct {
	Page        string  `json:"page"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// FetchDaily returns the stats for one day, newest data the API has.
func (c *Client) FetchDaily(ctx context.Context, day time.Time) ([]model.SearchStat, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("analytics base url not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle wait: %w", err)
	}

	date := day.Format("2006-01-02")
	statsURL, err := c.buildURL(date)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var rows []pageStat
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}

	stats := make([]model.SearchStat, 0, len(rows))
	for _, row := range rows {
		path := row.Page
		if c.siteURL != "" {
			path = strings.TrimPrefix(path, strings.TrimSuffix(c.siteURL, "/"))
		}
		if path == "" {
			path = "/"
		}
		stats = append(stats, model.SearchStat{
			Date:        date,
			Path:        path,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Position:    row.Position,
		})
	}

	c.logger.Printf("fetched %d page stats for %s", len(stats), date)
	return stats, nil
}

func (c *Client) buildURL(date string) (string, error) {
	base, err := url.Parse(c.baseURL + "/stats")
	if err != nil {
		return "", fmt.Errorf("parse base: %w", err)
	}
	q := base.Query()
	q.Set("date", date)
	if c.siteURL != "" {
		q.Set("site", c.siteURL)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
