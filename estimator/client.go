package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBytes = 1 << 16

// Client scores features through a remote model service.
type Client struct {
	endpoint string
	client   *http.Client
	name     string
	timeout  time.Duration
}

type ClientOption func(*Client)

// WithTimeout bounds each request. A client passed through WithHTTPClient
// is copied rather than modified.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		name: "remote",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.client.Timeout != c.timeout {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c
}

type predictRequest struct {
	Features Features `json:"features"`
}

type predictResponse struct {
	Risk *float64 `json:"risk"`
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Predict(ctx context.Context, f Features) Prediction {
	if err := f.Validate(); err != nil {
		return Failed(err)
	}

	body, err := json.Marshal(predictRequest{Features: f})
	if err != nil {
		return Failed(fmt.Errorf("marshaling model request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Failed(fmt.Errorf("%w: creating request: %v", ErrModelUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(fmt.Errorf("%w: %v", ErrModelUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failed(fmt.Errorf("%w: model service returned status %d", ErrModelUnavailable, resp.StatusCode))
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return Failed(fmt.Errorf("%w: decoding model response: %v", ErrModelUnavailable, err))
	}
	if out.Risk == nil {
		return Failed(fmt.Errorf("%w: response has no risk", ErrModelUnavailable))
	}
	return Predicted(*out.Risk)
}
