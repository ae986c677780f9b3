package mexc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"perpflow/pkg/exchange"
)

const (
	mainnetBaseURL = "https://contract.mexc.com"
	testnetBaseURL = "https://contract.testnet.mexc.com"

	defaultHTTPTimeout  = 30 * time.Second
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryAttempts    = 3
)

// Client coordinates signed requests against the MEXC contract REST API.
// It implements the MarketAPI, AccountAPI, PositionAPI and TradeAPI
// sub-client interfaces consumed by the adapter.
//
// Read requests (GET) are retried with doubling backoff; trading requests
// (POST) are never retried here since blind retries of order placement risk
// duplicate orders.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	apiSecret  string
	clock      func() time.Time
	logger     *log.Logger
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL overrides the REST endpoint, e.g. for httptest servers.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTestnet points the client at the testnet endpoint.
func WithTestnet() ClientOption {
	return func(c *Client) {
		c.baseURL = testnetBaseURL
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for request timestamps
// (primarily for testing).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient constructs a MEXC contract API client. Credentials may be empty
// for public-data-only use; private calls then fail fast with
// exchange.ErrCredentialsMissing before any network traffic.
func NewClient(apiKey, apiSecret string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    mainnetBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		clock:      time.Now,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.clock == nil {
		client.clock = time.Now
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// logf prints debug output when a logger is configured.
func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *Client) requireCredentials() error {
	if c.apiKey == "" || c.apiSecret == "" {
		return fmt.Errorf("mexc: %w", exchange.ErrCredentialsMissing)
	}
	return nil
}

// get issues a GET request. Private requests are signed; all GETs are
// retried with doubling backoff since they are read-only.
func (c *Client) get(ctx context.Context, path string, params url.Values, private bool, result interface{}) error {
	if private {
		if err := c.requireCredentials(); err != nil {
			return err
		}
	}
	query := ""
	if len(params) > 0 {
		query = params.Encode() // Encode sorts keys, matching the signing spec.
	}
	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	backoff := defaultRetryBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("mexc: build request %s: %w", path, err)
		}
		if private {
			c.authorize(httpReq, query)
		}

		done, err := c.execute(httpReq, path, result)
		if done {
			return err
		}
		lastErr = err
		c.logf("mexc: GET %s attempt %d/%d failed, retrying in %s: %v", path, attempt+1, maxRetryAttempts, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("mexc: request %s failed", path)
}

// post issues a signed POST request. Never retried.
func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mexc: encode request %s: %w", path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mexc: build request %s: %w", path, err)
	}
	c.authorize(httpReq, string(payload))

	_, err = c.execute(httpReq, path, result)
	return err
}

// authorize attaches the authentication headers. The signature covers
// access key, timestamp and the parameter string.
func (c *Client) authorize(req *http.Request, params string) {
	timestamp := strconv.FormatInt(c.clock().UnixMilli(), 10)
	req.Header.Set("ApiKey", c.apiKey)
	req.Header.Set("Request-Time", timestamp)
	req.Header.Set("Signature", signPayload(c.apiKey, c.apiSecret, timestamp, params))
	req.Header.Set("Content-Type", "application/json")
}

// execute runs one HTTP round trip and decodes the response envelope. The
// bool return reports whether the outcome is final (success or a
// non-retryable failure such as a decode error or exchange rejection).
func (c *Client) execute(req *http.Request, path string, result interface{}) (bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return true, req.Context().Err()
		}
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("mexc: read response %s: %w", path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		// Server-side errors may be transient; client errors are final.
		final := resp.StatusCode < http.StatusInternalServerError
		return final, fmt.Errorf("mexc: %s http status %d: %s", path, resp.StatusCode, string(body))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return true, fmt.Errorf("mexc: decode response %s: %w", path, err)
	}
	if !envelope.Success || (envelope.Code != 0 && envelope.Code != 200) {
		return true, fmt.Errorf("mexc: %s rejected: code %d: %s", path, envelope.Code, envelope.Message)
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return true, fmt.Errorf("mexc: decode data %s: %w", path, err)
		}
	}
	return true, nil
}

// decodeOrderID accepts both string and numeric order id payloads.
func decodeOrderID(raw json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber.String(), nil
	}
	// Some revisions nest the id in an object.
	var asObject struct {
		OrderID json.Number `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.OrderID.String() != "" {
		return asObject.OrderID.String(), nil
	}
	return "", fmt.Errorf("mexc: unrecognized order id payload %s", string(raw))
}
