package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/farmer"
)

type staticFarmer struct {
	status *farmer.Status
}

func (f staticFarmer) Status() *farmer.Status { return f.status }

func startServer(tb testing.TB, cfg Config, status *farmer.Status) string {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := NewJSONHTTPServer(zaptest.NewLogger(tb), cfg, staticFarmer{status: status})
	go func() { done <- srv.Serve(ctx, ln) }()
	tb.Cleanup(func() {
		cancel()
		require.NoError(tb, <-done)
	})
	return "http://" + ln.Addr().String()
}

func get(tb testing.TB, url string, out any) *http.Response {
	tb.Helper()
	resp, err := http.Get(url)
	require.NoError(tb, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(tb, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func testStatus() *farmer.Status {
	return &farmer.Status{
		Window: farmer.WindowStatus{State: types.WindowAwaitingProofs, Pending: 2},
		Peak:   &types.Peak{Height: 100},
		Harvesters: []farmer.HarvesterStatus{
			{ID: "a", Name: "local", State: "ready", Plots: 3},
		},
		Pools: []farmer.PoolStatus{
			{LauncherID: types.Bytes32{1}, URL: "https://pool.example", Difficulty: 7, Registered: true},
		},
	}
}

func TestStatus(t *testing.T) {
	url := startServer(t, DefaultConfig(), testStatus())

	var raw map[string]json.RawMessage
	resp := get(t, url+"/v1/status", &raw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Contains(t, raw, "window")
	require.Contains(t, raw, "pools")

	var window map[string]any
	get(t, url+"/v1/window", &window)
	require.Equal(t, "awaiting_proofs", window["state"])
	require.EqualValues(t, 2, window["pending"])

	var harvesters []farmer.HarvesterStatus
	get(t, url+"/v1/harvesters", &harvesters)
	require.Equal(t, testStatus().Harvesters, harvesters)
}

func TestPool(t *testing.T) {
	url := startServer(t, DefaultConfig(), testStatus())

	var pools []farmer.PoolStatus
	get(t, url+"/v1/pools", &pools)
	require.Len(t, pools, 1)

	var pool farmer.PoolStatus
	resp := get(t, url+"/v1/pools/"+types.Bytes32{1}.String(), &pool)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint64(7), pool.Difficulty)
	require.True(t, pool.Registered)

	resp = get(t, url+"/v1/pools/"+types.Bytes32{2}.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]apiError
	resp = get(t, url+"/v1/pools/zz", &body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_launcher_id", body["error"].Code)
}

func TestMethodNotAllowed(t *testing.T) {
	url := startServer(t, DefaultConfig(), testStatus())
	for _, path := range []string{"/v1/status", "/v1/pools/" + types.Bytes32{1}.String()} {
		resp, err := http.Post(url+path, "application/json", nil)
		require.NoError(t, err)
		var body map[string]apiError
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
		require.Equal(t, "method_not_allowed", body["error"].Code)
	}

	resp, err := http.Post(url+"/v2/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://dashboard.example"}
	url := startServer(t, cfg, testStatus())

	req, err := http.NewRequest(http.MethodGet, url+"/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "https://dashboard.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	url := startServer(t, DefaultConfig(), testStatus())

	req, err := http.NewRequest(http.MethodGet, url+"/v1/window", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "dashboard-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "dashboard-1", resp.Header.Get(requestIDHeader))

	resp = get(t, url+"/v1/window", nil)
	require.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func TestRequestMetricsUseRouteTemplate(t *testing.T) {
	url := startServer(t, DefaultConfig(), testStatus())
	get(t, url+"/v1/pools/0x01", nil)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var handlers []string
	for _, family := range families {
		if family.GetName() != "farmer_http_request_duration_seconds" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "handler" {
					handlers = append(handlers, label.GetValue())
				}
			}
		}
	}
	require.Contains(t, handlers, "/v1/pools/{launcher}")
}
