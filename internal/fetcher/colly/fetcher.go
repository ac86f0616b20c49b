// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/platemetrics/review-crawler/internal/crawler"
	"github.com/platemetrics/review-crawler/internal/telemetry"
)

// Limiter gates requests per host; the shared instance serializes request
// timing across concurrent pipeline workers.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	RespectRobots bool
}

// Fetcher fetches single pages with per-host rate limiting and jittered
// retries on transient failures.
type Fetcher struct {
	cfg     Config
	base    *colly.Collector
	limiter Limiter
	policy  crawler.RetryPolicy
	sleeper crawler.Sleeper
	logger  *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, limiter Limiter, policy crawler.RetryPolicy, sleeper crawler.Sleeper, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base := colly.NewCollector(colly.Async(false))
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = !cfg.RespectRobots
	base.SetRequestTimeout(cfg.Timeout)
	base.WithTransport(newHTTPTransport())

	if sleeper == nil {
		sleeper = crawler.TimerSleeper{}
	}
	return &Fetcher{
		cfg:     cfg,
		base:    base,
		limiter: limiter,
		policy:  policy,
		sleeper: sleeper,
		logger:  logger,
	}
}

// Fetch retrieves rawURL, retrying transient failures up to MaxRetries with
// exponential backoff. Malformed URLs and permanent HTTP failures (4xx other
// than 429) return immediately.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return crawler.Page{}, &crawler.FetchError{
			URL:       rawURL,
			Transient: false,
			Err:       fmt.Errorf("malformed url: %v", err),
		}
	}

	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return crawler.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		page, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}

		if !f.policy.ShouldRetry(err, attempt) {
			return crawler.Page{}, err
		}
		telemetry.FetchRetries.Inc()
		backoff := f.policy.Backoff(attempt)
		f.logger.Debug("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		f.sleeper.Sleep(ctx, backoff)
		if ctx.Err() != nil {
			return crawler.Page{}, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
		}
	}
}

// fetchOnce executes a single HTTP GET on a cloned collector.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (crawler.Page, error) {
	collector := f.base.Clone()

	var (
		page     crawler.Page
		got      bool
		respErr  error
		respCode int
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		page = crawler.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		got = true
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			respCode = r.StatusCode
		}
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawler.Page{}, &crawler.FetchError{URL: rawURL, Transient: false, Err: ctx.Err()}
	case visitErr := <-done:
		switch {
		case respErr != nil && respCode > 0:
			return crawler.Page{}, crawler.NewFetchError(rawURL, respCode, respErr)
		case respErr != nil:
			return crawler.Page{}, classifyTransportError(rawURL, respErr)
		case visitErr != nil:
			return crawler.Page{}, &crawler.FetchError{URL: rawURL, Transient: false, Err: visitErr}
		case !got:
			return crawler.Page{}, &crawler.FetchError{
				URL:       rawURL,
				Transient: true,
				Err:       errors.New("no response produced"),
			}
		}
		return page, nil
	}
}

// classifyTransportError marks connection-level failures as transient.
// Timeouts and resets recover on retry; anything colly rejects before the
// wire (bad scheme, blocked by robots) does not.
func classifyTransportError(rawURL string, err error) *crawler.FetchError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &crawler.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &crawler.FetchError{URL: rawURL, Transient: true, Err: err}
	}
	return &crawler.FetchError{URL: rawURL, Transient: false, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
