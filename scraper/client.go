package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/autotrader-watch/config"
)

const responseKey = "response"

// Response is the answer of one fetch.
type Response struct {
	StatusCode int
	Body       []byte
	URL        string
	Duration   time.Duration
}

// Client issues sequential, throttled and retried GET requests through a
// colly collector.
type Client struct {
	cfg        config.FetchConfig
	collector  *colly.Collector
	transport  *timedTransport
	throttle   *throttle
	retryCodes map[int]struct{}
	Metrics    *Metrics
}

// NewClient builds a client from cfg. metrics may be nil.
func NewClient(cfg config.FetchConfig, metrics *Metrics) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}
	if !cfg.FollowRedirects {
		collector.SetRedirectHandler(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})
	}

	retryCodes := make(map[int]struct{}, len(cfg.RetryCodes))
	for _, code := range cfg.RetryCodes {
		retryCodes[code] = struct{}{}
	}

	c := &Client{
		cfg:        cfg,
		collector:  collector,
		throttle:   newThrottle(cfg.MaxDelay),
		retryCodes: retryCodes,
		Metrics:    metrics,
	}
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		c.Metrics.IncRequest("started")
		slog.Debug("fetch request", slog.String("url", r.URL.String()))
	})
	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
		c.Metrics.IncRequest("answered")
	})
	collector.OnError(func(r *colly.Response, err error) {
		url := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			url = r.Request.URL.String()
		}
		slog.Debug("fetch transport error", slog.String("url", url), slog.Any("error", err))
	})

	return c, nil
}

// WithTransport swaps the round tripper used for every request.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.transport = &timedTransport{next: rt}
	c.collector.WithTransport(c.transport)
}

// Fetch GETs rawURL. Transient failures (configured retry codes, timeouts and
// connection errors) are retried up to MaxRetries times with capped
// exponential backoff. When the server answered, the last response is
// returned alongside a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	var (
		lastResp  *Response
		lastErr   error
		retryable bool
		attempts  int
	)

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		wait := c.throttle.current()
		if attempt > 0 {
			c.Metrics.IncRetries()
			wait += c.backoff(attempt)
		}
		if err := sleepContext(ctx, wait); err != nil {
			return lastResp, err
		}

		attempts++
		resp, err := c.do(rawURL, c.headersFor(headers))
		status := 0
		if resp != nil {
			status = resp.StatusCode
			c.Metrics.ObserveDuration(resp.Duration)
			c.Metrics.SetThrottle(c.throttle.observe(resp.Duration, status))
		}
		if err == nil && status >= http.StatusOK && status < http.StatusMultipleChoices {
			return resp, nil
		}

		lastResp = resp
		lastErr = classifyError(err, status)
		retryable = c.shouldRetry(status, err)
		c.Metrics.IncError(errorTypeLabel(lastErr))
		slog.Warn("fetch failed",
			slog.String("url", rawURL),
			slog.Int("status", status),
			slog.Int("attempt", attempts),
			slog.Bool("retryable", retryable),
			slog.Any("error", lastErr),
		)
		if !retryable {
			break
		}
	}

	statusCode := 0
	if lastResp != nil {
		statusCode = lastResp.StatusCode
	}
	return lastResp, &FetchError{
		URL:        rawURL,
		StatusCode: statusCode,
		Attempts:   attempts,
		Retryable:  retryable,
		Err:        lastErr,
	}
}

func (c *Client) do(rawURL string, hdr http.Header) (*Response, error) {
	cctx := colly.NewContext()
	err := c.collector.Request(http.MethodGet, rawURL, nil, cctx, hdr)

	r, _ := cctx.GetAny(responseKey).(*colly.Response)
	if r == nil {
		if err == nil {
			err = errors.New("no response received")
		}
		return nil, err
	}

	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return &Response{
		StatusCode: r.StatusCode,
		Body:       r.Body,
		URL:        finalURL,
		Duration:   c.transport.lastLatency(),
	}, err
}

func (c *Client) shouldRetry(status int, err error) bool {
	if status != 0 {
		_, ok := c.retryCodes[status]
		return ok
	}
	if err == nil {
		return false
	}
	var timeout ErrTimeout
	var conn ErrConnection
	classified := classifyError(err, 0)
	return errors.As(classified, &timeout) || errors.As(classified, &conn)
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// headersFor copies the caller's headers and, when rotation is on and no
// User-Agent was given, fills in one of the browser header sets.
func (c *Client) headersFor(custom http.Header) http.Header {
	hdr := http.Header{}
	for key, values := range custom {
		hdr[key] = append([]string(nil), values...)
	}
	if !c.cfg.RotateHeaders || hdr.Get("User-Agent") != "" {
		return hdr
	}
	set := browserHeaderSets[rand.IntN(len(browserHeaderSets))]
	for key, values := range set {
		if hdr.Get(key) == "" {
			hdr[key] = append([]string(nil), values...)
		}
	}
	return hdr
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Err: wrapped}
		}
		return wrapped
	}

	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// timedTransport remembers the latency of the last round trip. The client is
// sequential, so the last value always belongs to the current request.
type timedTransport struct {
	next http.RoundTripper
	last atomic.Int64
}

func (t *timedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	t.last.Store(int64(time.Since(start)))
	return resp, err
}

func (t *timedTransport) lastLatency() time.Duration {
	return time.Duration(t.last.Load())
}
