package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/common/types"
)

const maxResponseSize = 1 << 20

// HTTPConfig configures retries of pool requests.
type HTTPConfig struct {
	MaxRetries     int           `mapstructure:"max-retries"`
	RetryWaitMin   time.Duration `mapstructure:"retry-wait-min"`
	RetryWaitMax   time.Duration `mapstructure:"retry-wait-max"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

func (cfg *HTTPConfig) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("max retries", cfg.MaxRetries)
	encoder.AddDuration("min retry wait", cfg.RetryWaitMin)
	encoder.AddDuration("max retry wait", cfg.RetryWaitMax)
	encoder.AddDuration("request timeout", cfg.RequestTimeout)
	return nil
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		MaxRetries:     3,
		RetryWaitMin:   500 * time.Millisecond,
		RetryWaitMax:   4 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// checkRetry retries network errors, 5xx and 429. Any other response, including every
// other 4xx, is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// A wrapper around zap.Logger to make it compatible with
// retryablehttp.LeveledLogger interface.
type retryableHTTPLogger struct {
	inner *zap.Logger
}

func (r retryableHTTPLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHTTPLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHTTPLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHTTPLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

type HTTPOpt func(*HTTPClient)

func WithHTTPLogger(logger *zap.Logger) HTTPOpt {
	return func(c *HTTPClient) {
		c.logger = logger
		c.client.Logger = &retryableHTTPLogger{inner: logger}
		c.client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
			c.logger.Debug("pool response received",
				zap.Stringer("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode),
			)
		}
	}
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(client *http.Client) HTTPOpt {
	return func(c *HTTPClient) {
		c.client.HTTPClient = client
	}
}

// HTTPClient speaks the pool protocol over http.
type HTTPClient struct {
	logger  *zap.Logger
	baseURL *url.URL
	client  *retryablehttp.Client
}

// NewHTTPClient creates a client for the pool at address.
func NewHTTPClient(address string, cfg HTTPConfig, opts ...HTTPOpt) (*HTTPClient, error) {
	baseURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: parse pool url %q: %w", types.ErrConfiguration, address, err)
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "https"
	}
	client := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
		RetryMax:     cfg.MaxRetries,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		Backoff:      retryablehttp.DefaultBackoff,
		CheckRetry:   checkRetry,
	}
	c := &HTTPClient{
		logger:  zap.NewNop(),
		baseURL: baseURL,
		client:  client,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("created pool client", zap.Stringer("url", baseURL), zap.Inline(&cfg))
	return c, nil
}

// Address of the pool.
func (c *HTTPClient) Address() string {
	return c.baseURL.String()
}

// Info fetches the pool description.
func (c *HTTPClient) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.req(ctx, http.MethodGet, "pool_info", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Farmer fetches what the pool knows about a farmer.
func (c *HTTPClient) Farmer(
	ctx context.Context,
	launcherID types.Bytes32,
	token uint64,
	signature types.Bytes96,
) (*FarmerInfo, error) {
	query := url.Values{
		"launcher_id":          {launcherID.String()},
		"authentication_token": {strconv.FormatUint(token, 10)},
		"signature":            {signature.String()},
	}
	var info FarmerInfo
	if err := c.req(ctx, http.MethodGet, "farmer", query, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PostFarmer registers a farmer.
func (c *HTTPClient) PostFarmer(ctx context.Context, req *PostFarmerRequest) (*PostFarmerResponse, error) {
	var resp PostFarmerResponse
	if err := c.req(ctx, http.MethodPost, "farmer", nil, req.toJSON(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Partial submits a partial.
func (c *HTTPClient) Partial(ctx context.Context, partial *types.Partial) (*PartialResponse, error) {
	var resp PartialResponse
	if err := c.req(ctx, http.MethodPost, "partial", nil, partialToJSON(partial), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) req(
	ctx context.Context,
	method, path string,
	query url.Values,
	reqBody, resBody any,
) error {
	target := c.baseURL.JoinPath(path)
	if query != nil {
		target.RawQuery = query.Encode()
	}
	var body any
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", types.ErrTransientNetwork, method, path, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading response body: %w", types.ErrTransientNetwork, err)
	}

	// pools report protocol errors in the body, with or without an error status
	var perr errorResponse
	if json.Unmarshal(data, &perr) == nil && perr.ErrorCode != 0 {
		return &Error{Status: res.StatusCode, Code: perr.ErrorCode, Message: perr.ErrorMessage}
	}
	if res.StatusCode != http.StatusOK {
		c.logger.Debug("pool request failed", zap.String("status", res.Status), zap.ByteString("body", data))
		return &Error{Status: res.StatusCode, Code: RequestFailed, Message: string(data)}
	}
	if err := json.Unmarshal(data, resBody); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", types.ErrProtocolViolation, path, err)
	}
	return nil
}
