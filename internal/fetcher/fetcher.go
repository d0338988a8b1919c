package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vim-jp/vimmagazinetools/internal/logging"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 3
	DefaultRetryWait    = 2 * time.Second
	DefaultRetryMaxWait = 10 * time.Second

	userAgent = "vimmagazinetools/1.0"
)

// Options configures the HTTP behaviour shared by every remote source.
type Options struct {
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

func (o Options) normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = DefaultRetryWait
	}
	if o.RetryMaxWait < o.RetryWait {
		o.RetryMaxWait = max(DefaultRetryMaxWait, o.RetryWait)
	}
	return o
}

// Client fetches raw documents over HTTP with a bounded timeout and retries
// transient failures (transport errors, 429 and 5xx).
type Client struct {
	r *resty.Client
}

// New creates a Client.
func New(opts Options) *Client {
	opts = opts.normalized()

	r := resty.New()
	r.SetTimeout(opts.Timeout)
	r.SetRetryCount(opts.Retries)
	r.SetRetryWaitTime(opts.RetryWait)
	r.SetRetryMaxWaitTime(opts.RetryMaxWait)
	r.SetHeader("User-Agent", userAgent)
	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := resp.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})
	r.AddRetryHook(func(resp *resty.Response, err error) {
		if resp == nil || resp.Request == nil {
			return
		}
		if err != nil {
			logging.Debugf("Verbose: retrying %s after error: %v\n", resp.Request.URL, err)
			return
		}
		logging.Debugf("Verbose: retrying %s after HTTP %d\n", resp.Request.URL, resp.StatusCode())
	})

	return &Client{r: r}
}

// HTTPClient exposes the underlying *http.Client so API clients share the
// same timeout and transport.
func (c *Client) HTTPClient() *http.Client {
	return c.r.GetClient()
}

// Get returns the body of url. Any status other than 200 is an error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	logging.Debugf("Verbose: GET %s\n", url)

	resp, err := c.r.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode())
	}

	logging.Debugf("Verbose: GET %s done bytes=%d\n", url, len(resp.Body()))
	return resp.Body(), nil
}
