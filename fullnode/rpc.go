package fullnode

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/plotfarm/go-farmer/common/types"
)

// BlockchainState is the part of the full node state the farmer reports.
type BlockchainState struct {
	Peak struct {
		Height     uint32        `json:"height"`
		Weight     uint64        `json:"weight"`
		HeaderHash types.Bytes32 `json:"header_hash"`
	} `json:"peak"`
	Sync struct {
		Synced             bool   `json:"synced"`
		SyncMode           bool   `json:"sync_mode"`
		SyncTipHeight      uint32 `json:"sync_tip_height"`
		SyncProgressHeight uint32 `json:"sync_progress_height"`
	} `json:"sync"`
	Difficulty   uint64 `json:"difficulty"`
	SubSlotIters uint64 `json:"sub_slot_iters"`
	Space        uint64 `json:"space"`
}

type rpcResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
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

// RPCClient queries the full node rpc server.
type RPCClient struct {
	baseURL *url.URL
	client  *retryablehttp.Client
}

// NewRPCClient creates a client for the rpc server at address.
func NewRPCClient(logger *zap.Logger, address string, tlsConfig *tls.Config) (*RPCClient, error) {
	baseURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: parse rpc url %q: %w", types.ErrConfiguration, address, err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	client := &retryablehttp.Client{
		HTTPClient:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
		Logger:       &retryableHTTPLogger{inner: logger},
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Backoff:      retryablehttp.LinearJitterBackoff,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
	}
	client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		logger.Debug("full node rpc response",
			zap.String("url", resp.Request.URL.String()),
			zap.Int("status", resp.StatusCode),
		)
	}
	return &RPCClient{baseURL: baseURL, client: client}, nil
}

// BlockchainState returns the current state of the full node.
func (c *RPCClient) BlockchainState(ctx context.Context) (*BlockchainState, error) {
	var resp struct {
		rpcResponse
		State *BlockchainState `json:"blockchain_state"`
	}
	if err := c.call(ctx, "get_blockchain_state", struct{}{}, &resp, &resp.rpcResponse); err != nil {
		return nil, err
	}
	if resp.State == nil {
		return nil, fmt.Errorf("%w: get_blockchain_state: empty state", types.ErrProtocolViolation)
	}
	return resp.State, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params, result any, status *rpcResponse) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling %s params: %w", method, err)
	}
	req, err := retryablehttp.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL.JoinPath(method).String(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrTransientNetwork, method, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", types.ErrTransientNetwork, method, err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %s", types.ErrTransientNetwork, method, res.Status)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", types.ErrProtocolViolation, method, err)
	}
	if !status.Success {
		return fmt.Errorf("%s failed: %s", method, status.Error)
	}
	return nil
}
