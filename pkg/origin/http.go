package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/httpmemfs/internal/logger"
	"github.com/marmos91/httpmemfs/internal/ratelimiter"
	"github.com/marmos91/httpmemfs/internal/retry"
)

const defaultChunkSize = 32 * 1024

// HTTPConfig configures an HTTP origin.
type HTTPConfig struct {
	// BaseURL is the URL the mount root maps to. Must be absolute http(s).
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// HeaderTimeout bounds the wait for response headers. The body itself is
	// never subject to a deadline; large objects stream for as long as needed.
	HeaderTimeout time.Duration `mapstructure:"header_timeout" validate:"gte=0"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `mapstructure:"user_agent"`

	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers"`

	// MaxRetries is the number of extra attempts made when the request fails
	// before headers arrive with a transport error, 429 or a 5xx status.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RequestsPerSecond throttles requests to the origin; 0 disables it.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Burst is the token bucket capacity used with RequestsPerSecond.
	Burst int `mapstructure:"burst" validate:"gte=0"`

	// ChunkSize is the read buffer size used while streaming bodies.
	ChunkSize int `mapstructure:"chunk_size" validate:"gte=0"`
}

// HTTP is an Origin backed by plain GET requests.
type HTTP struct {
	base      *url.URL
	client    *http.Client
	limiter   *ratelimiter.Limiter
	policy    retry.Policy
	userAgent string
	headers   map[string]string
	chunkSize int
}

// NewHTTP builds an HTTP origin from cfg.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", cfg.BaseURL)
	}
	// Without the trailing slash the last path element would be replaced
	// during reference resolution instead of extended.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base.RawPath = ""

	headerTimeout := cfg.HeaderTimeout
	if headerTimeout == 0 {
		headerTimeout = 30 * time.Second
	}

	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = defaultChunkSize
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxRetries + 1

	ua := cfg.UserAgent
	if ua == "" {
		ua = "httpmemfs/1.0"
	}

	return &HTTP{
		base: base,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		limiter:   ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst),
		policy:    policy,
		userAgent: ua,
		headers:   cfg.Headers,
		chunkSize: chunk,
	}, nil
}

// Resolve joins relative onto the base URL. Each component is escaped, so
// names containing '?', '#' or spaces stay part of the path.
func (h *HTTP) Resolve(relative string) (string, error) {
	rel := strings.ReplaceAll(relative, `\`, "/")
	rel = strings.TrimLeft(rel, "/")
	if rel == "" {
		rel = IndexDocument
	}

	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("relative path %q escapes the origin root", relative)
		}
	}

	return h.base.ResolveReference(&url.URL{Path: rel}).String(), nil
}

// Fetch issues a GET for rawURL and streams the body into sink.
//
// Transport errors, 429 and 5xx responses are retried with backoff until
// the headers of a successful response arrive. Once sink.Header has been
// called the fetch is never restarted, so a body that breaks midway surfaces
// as an error.
func (h *HTTP) Fetch(ctx context.Context, rawURL string, sink Sink) (int64, error) {
	var resp *http.Response

	err := retry.Do(ctx, h.policy, func(attempt int) error {
		if err := h.limiter.Acquire(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", h.userAgent)
		for k, v := range h.headers {
			req.Header.Set(k, v)
		}

		r, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Debug("origin: GET %s attempt %d: %v", rawURL, attempt, err)
			return retry.Transient(err)
		}

		if r.StatusCode < 200 || r.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			serr := &StatusError{URL: rawURL, StatusCode: r.StatusCode}
			if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
				logger.Debug("origin: GET %s attempt %d: %v", rawURL, attempt, serr)
				return retry.Transient(serr)
			}
			return serr
		}

		resp = r
		return nil
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !sink.Header(resp.ContentLength) {
		return 0, nil
	}

	buf := make([]byte, h.chunkSize)
	var total int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if werr := sink.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("deliver chunk: %w", werr)
			}
			total += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return total, fmt.Errorf("read body of %s: %w", rawURL, rerr)
		}
	}

	if resp.ContentLength >= 0 && total != resp.ContentLength {
		return total, fmt.Errorf("short body for %s: got %d of %d bytes: %w", rawURL, total, resp.ContentLength, io.ErrUnexpectedEOF)
	}
	return total, nil
}
