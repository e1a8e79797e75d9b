package vodapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/util/ratelimiter"
)

// maxResponseSize bounds the JSON bodies read from the API
const maxResponseSize = 1 << 20

// Config contains client configuration
type Config struct {
	BaseURL    string
	TokenPath  string
	VideoURL   string
	ClientType int

	Secret      string
	Scope       string
	ContentType string
	CSRFCookie  string

	Referer   string
	UserAgent string
	Cookies   map[string]string

	Timeout               time.Duration // API call timeout
	ResponseHeaderTimeout time.Duration // segment response header timeout
	BufferSize            int           // transport read/write buffer in bytes
	SkipTLSVerify         bool

	// MinInterval spaces API calls across all workers; zero disables pacing
	MinInterval time.Duration
}

// Client talks to the authorization and resource location services and
// serves session-decorated GETs for manifests and segments
type Client struct {
	cfg            Config
	httpClient     *http.Client
	downloadClient *http.Client
	limiter        *ratelimiter.Limiter
	logger         *zap.Logger
	now            func() time.Time
}

// NewClient creates a new API client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.VideoURL == "" {
		return nil, errors.New("video URL is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if cfg.Scope == "" {
		cfg.Scope = "1"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "1"
	}
	if cfg.ClientType == 0 {
		cfg.ClientType = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ResponseHeaderTimeout == 0 {
		cfg.ResponseHeaderTimeout = 30 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	downloadTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     120 * time.Second,

		WriteBufferSize: cfg.BufferSize,
		ReadBufferSize:  cfg.BufferSize,

		ForceAttemptHTTP2: true,

		// Segments are already compressed
		DisableCompression: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		downloadClient: &http.Client{
			Transport: downloadTransport,
			Timeout:   0, // No timeout for downloads
		},
		limiter: ratelimiter.New(cfg.MinInterval),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// CSRFKey returns the value of the configured CSRF cookie, or "" if absent
func (c *Client) CSRFKey() string {
	return c.cfg.Cookies[c.cfg.CSRFCookie]
}

// Get performs a session-decorated GET on the download transport.
// The caller owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// decorate adds the session headers and cookies to a request
func (c *Client) decorate(req *http.Request) {
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for name, value := range c.cfg.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// doAPIRequest sends req through the paced API transport and decodes the envelope.
// A non-zero code is returned as *APIError.
func (c *Client) doAPIRequest(req *http.Request) (*envelope, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnexpected, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
	return &env, nil
}

// LoadCookies reads a cookies file. Both a name to value object and a
// browser-export array of {name, value} entries are accepted.
func LoadCookies(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	cookies := make(map[string]string)
	if err := json.Unmarshal(data, &cookies); err == nil {
		return cookies, nil
	}

	var entries []cookieEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}
	for _, e := range entries {
		if e.Name != "" {
			cookies[e.Name] = e.Value
		}
	}
	return cookies, nil
}
