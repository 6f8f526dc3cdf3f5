// Package sources downloads the raw datasets and normalizes them into
// region/month tables. Each dataset lives in its own subpackage; this package
// holds the shared transport and the runner that caches their output.
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"hotel-panel/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher downloads the body behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Opener streams the body behind a URL. The caller closes it.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	Timeout     time.Duration
	MaxRetries  int
	RateLimitMs int
	Logger      *utils.Logger
}

// ErrIdleTimeout is returned by a response body that received no data for
// the configured timeout.
var ErrIdleTimeout = errors.New("response body idle")

// HTTPFetcher performs plain GET requests with one circuit breaker per host,
// optional retries and request pacing. The timeout bounds connecting, the
// wait for response headers and each gap between body reads, never the
// whole transfer.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	retry   *utils.RetryConfig
	limiter *rate.Limiter
	logger  *utils.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &HTTPFetcher{
		client:  &http.Client{Transport: transport},
		timeout: timeout,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      opts.Logger,
			Retryable:   retryable,
		},
		limiter:  utils.NewLimiter(opts.RateLimitMs),
		logger:   opts.Logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}
}

// Fetch downloads rawURL into memory.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "GET "+rawURL, func() error {
		resp, err := f.do(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body %s: %w", rawURL, err)
		}
		body = b
		return nil
	})
	return body, err
}

// Open returns the response body of rawURL for streaming.
func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := f.retry.Do(ctx, "GET "+rawURL, func() error {
		resp, err := f.do(ctx, rawURL)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	return body, err
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	return f.breaker(u.Host).Execute(func() (*http.Response, error) {
		reqCtx, cancel := context.WithCancel(ctx)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			cancel()
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			cancel()
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			cancel()
			return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		}
		resp.Body = newIdleBody(resp.Body, f.timeout, cancel)
		return resp, nil
	})
}

// idleBody cancels the request when no bytes arrive for timeout. Each
// successful Read restarts the clock.
type idleBody struct {
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	expired atomic.Bool
}

func newIdleBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleBody {
	b := &idleBody{body: body, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.expired.Store(true)
		cancel()
	})
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 && !b.expired.Load() {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF && b.expired.Load() {
		return n, fmt.Errorf("%w for %s: %v", ErrIdleTimeout, b.timeout, err)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.body.Close()
	b.cancel()
	return err
}

// breaker returns the circuit breaker for host, creating it on first use.
// It opens after 5 consecutive failures and lets a single request through
// again after a minute.
func (f *HTTPFetcher) breaker(host string) *gobreaker.CircuitBreaker[*http.Response] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("[http] Circuit %s: %s → %s", name, from, to)
		},
	})
	f.breakers[host] = cb
	return cb
}

// FallbackFetcher tries each fetcher in order and returns the first success.
type FallbackFetcher struct {
	Fetchers []Fetcher
	Logger   *utils.Logger
}

// Fetch implements Fetcher.
func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var errs []error
	for i, fetcher := range f.Fetchers {
		body, err := fetcher.Fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.Logger.Warn("[fetch] Fetcher %d/%d failed for %s: %v", i+1, len(f.Fetchers), rawURL, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("fetch %s: no fetchers configured", rawURL)
	}
	return nil, errors.Join(errs...)
}

// FetchFirst downloads the first of urls that succeeds and returns its body
// and the URL it came from. Used for datasets published on several mirrors.
func FetchFirst(ctx context.Context, f Fetcher, urls []string, logger *utils.Logger) ([]byte, string, error) {
	var errs []error
	for _, u := range urls {
		body, err := f.Fetch(ctx, u)
		if err == nil {
			return body, u, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logger.Warn("[fetch] Mirror failed %s: %v", u, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", errors.New("fetch: no urls given")
	}
	return nil, "", errors.Join(errs...)
}
