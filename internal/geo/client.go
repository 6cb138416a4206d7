// Package geo resolves visitor IP addresses to a coarse location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/penshort/shortlytics/internal/model"
)

const (
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 2 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 1 * time.Second

	maxResponseBytes = 64 << 10
)

// ErrPrivateAddress is returned for addresses that have no public location.
var ErrPrivateAddress = errors.New("address is not publicly routable")

// Config configures a Client.
type Config struct {
	BaseURL   string // e.g. https://ipinfo.io
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Client looks up IPs against an ipinfo-style endpoint ({base}/{ip}/json).
// Results, including empty ones, are cached in an expiring LRU.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *lru.LRU[string, model.GeoLocation]
}

// NewHTTPClient creates an HTTP client for geolocation lookups. It has short
// timeouts and does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewClient creates a geolocation client.
func NewClient(cfg Config) *Client {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1000
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    NewHTTPClient(cfg.Timeout),
		cache:   lru.NewLRU[string, model.GeoLocation](size, nil, cfg.CacheTTL),
	}
}

type ipinfoResponse struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	Bogon   bool   `json:"bogon"`
}

// Lookup returns the location of ip. Private, loopback and unparsable
// addresses return ErrPrivateAddress without a network call.
func (c *Client) Lookup(ctx context.Context, ip string) (*model.GeoLocation, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("parse ip %q: %w", ip, ErrPrivateAddress)
	}
	if !isPublic(addr) {
		return nil, ErrPrivateAddress
	}
	key := addr.String()

	if loc, ok := c.cache.Get(key); ok {
		return &loc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+key+"/json", nil)
	if err != nil {
		return nil, fmt.Errorf("build geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("geolocation request: unexpected status %d", resp.StatusCode)
	}

	var body ipinfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}

	loc := model.GeoLocation{}
	if !body.Bogon {
		loc = model.GeoLocation{Country: body.Country, Region: body.Region, City: body.City}
	}
	c.cache.Add(key, loc)

	return &loc, nil
}

func isPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsMulticast()
}
