package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRetryWait = 2 * time.Second

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout and
// retry budget. Retries use resty's exponential backoff.
func NewRestyClient(timeout time.Duration, maxRetries int) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, maxRetries)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout, 0)
}

func newRestyBaseClient(timeout time.Duration, maxRetries int) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	if maxRetries > 0 {
		c.SetRetryCount(maxRetries)
		c.SetRetryWaitTime(defaultRetryWait)
		c.SetRetryMaxWaitTime(defaultRetryWait << 3)
	}
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
