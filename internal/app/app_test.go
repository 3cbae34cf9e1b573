package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/botgateway/api/transport"
	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/internal/config"
)

type fakeBot struct {
	srv    *httptest.Server
	starts atomic.Int32
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	b := &fakeBot{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/status":
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "slow" {
				time.Sleep(300 * time.Millisecond)
			}
			if reqID == "bot-error" {
				_, _ = w.Write([]byte(`{"status":"error","message":"token invalid"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "stopped", "request_id": reqID})
		case "/start":
			b.starts.Add(1)
			_, _ = w.Write([]byte(`{"status":"success","message":"Bot started successfully"}`))
		case "/stop":
			_, _ = w.Write([]byte(`{"status":"success","message":"Bot stopped successfully"}`))
		case "/users":
			_, _ = w.Write([]byte(`[{"id":1}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func testConfig(t *testing.T, botURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AppName: "botgateway-test",
		HTTP:    config.HTTPConfig{EnableMetrics: true},
		Downstream: config.DownstreamConfig{
			BaseURL:  botURL,
			Timeout:  time.Second,
			MaxConns: 8,
		},
		Health: config.HealthConfig{
			Schedule:        "@every 1h",
			TickTimeout:     2 * time.Second,
			ToleratedStates: []string{"running"},
		},
		AccessLog: config.AccessLogConfig{Dir: filepath.Join(dir, "logs"), File: "access.log"},
		Journal:   config.JournalConfig{Path: filepath.Join(dir, "data", "ticks.db"), RetentionHours: 1},
		Context:   config.ContextConfig{RequestTimeout: 2 * time.Second, ShutdownTimeout: 2 * time.Second},
	}
}

type harness struct {
	app    *App
	client *fasthttp.Client
}

func newHarness(t *testing.T, botURL string) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testConfig(t, botURL))
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	a, err := New(cfg, nil)
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = a.server.Serve(ln) }()
	t.Cleanup(func() {
		_ = a.server.Shutdown()
		_ = a.Close()
	})

	return &harness{
		app: a,
		client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		},
	}
}

func (h *harness) do(t *testing.T, method, path, reqID string) (int, []byte) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://gateway" + path)
	req.Header.SetMethod(method)
	if reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	require.NoError(t, h.client.DoTimeout(req, resp, 5*time.Second))
	if reqID != "" {
		assert.Equal(t, reqID, string(resp.Header.Peek("X-Request-ID")))
	}
	assert.Equal(t, "application/json", string(resp.Header.ContentType()))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestAdminUsers_RelaysBodyExactly(t *testing.T) {
	h := newHarness(t, newFakeBot(t).srv.URL)

	status, body := h.do(t, http.MethodGet, "/admin/users", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `[{"id":1}]`, string(body))
}

func TestAdminStartStop_Relay(t *testing.T) {
	bot := newFakeBot(t)
	h := newHarness(t, bot.srv.URL)

	status, body := h.do(t, http.MethodPost, "/admin/start", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"success","message":"Bot started successfully"}`, string(body))
	assert.EqualValues(t, 1, bot.starts.Load())

	status, _ = h.do(t, http.MethodPost, "/admin/stop", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, http.MethodGet, "/admin/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestAdminStart_UnreachableReturns500(t *testing.T) {
	h := newHarness(t, unreachableURL(t))

	started := time.Now()
	status, body := h.do(t, http.MethodPost, "/admin/start", "")

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, status)

	var errBody transport.ErrorBody
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "error", errBody.Status)
	assert.True(t, strings.HasPrefix(errBody.Message, "Failed to start bot: "), errBody.Message)
}

func TestAdminStart_HungBotIsBounded(t *testing.T) {
	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer hung.Close()

	h := newHarness(t, hung.URL)

	started := time.Now()
	status, body := h.do(t, http.MethodPost, "/admin/start", "")

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), `"status":"error"`)
}

func TestRoot_ConcurrentCallsAreIndependent(t *testing.T) {
	h := newHarness(t, newFakeBot(t).srv.URL)

	type outcome struct {
		status int
		body   []byte
	}
	results := make(map[string]outcome)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range []string{"slow", "fast"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			status, body := h.do(t, http.MethodGet, "/", id)
			mu.Lock()
			results[id] = outcome{status, body}
			mu.Unlock()
		}(id)
		if id == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
	}
	wg.Wait()

	for _, id := range []string{"slow", "fast"} {
		res := results[id]
		assert.Equal(t, http.StatusOK, res.status)

		var root transport.RootStatus
		require.NoError(t, json.Unmarshal(res.body, &root))
		assert.Equal(t, "ok", root.Status)
		assert.Equal(t, domain.StateStopped, root.BotStatus.State)

		var raw map[string]string
		require.NoError(t, json.Unmarshal(root.BotStatus.Raw, &raw))
		assert.Equal(t, id, raw["request_id"], "response attributed to its own request")
	}
}

func TestRoot_UnreachableBot(t *testing.T) {
	h := newHarness(t, unreachableURL(t))

	status, body := h.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, status)

	var root transport.RootStatus
	require.NoError(t, json.Unmarshal(body, &root))
	assert.Equal(t, "error", root.Status)
	assert.Equal(t, domain.StateError, root.BotStatus.State)
	assert.NotEmpty(t, root.BotStatus.Message)

	status, body = h.do(t, http.MethodGet, "/admin/status", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), `"state":"error"`)

	status, _ = h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestRoot_BotReportedErrorIsNotAConnectionFailure(t *testing.T) {
	h := newHarness(t, newFakeBot(t).srv.URL)

	status, body := h.do(t, http.MethodGet, "/", "bot-error")
	assert.Equal(t, http.StatusOK, status)

	var root transport.RootStatus
	require.NoError(t, json.Unmarshal(body, &root))
	assert.Equal(t, "ok", root.Status)
	assert.Equal(t, domain.StateError, root.BotStatus.State)
	assert.Equal(t, "token invalid", root.BotStatus.Message)

	status, body = h.do(t, http.MethodGet, "/admin/status", "bot-error")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"reported":"error"`)
}

func TestAdminStatus_ReturnsDownstreamStatus(t *testing.T) {
	h := newHarness(t, newFakeBot(t).srv.URL)

	status, body := h.do(t, http.MethodGet, "/admin/status", "req-1")
	assert.Equal(t, http.StatusOK, status)

	var got domain.DownstreamStatus
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.StateStopped, got.State)
	assert.Equal(t, "stopped", got.Reported)
}

func TestAccessLog_WritesOneLinePerRequest(t *testing.T) {
	h := newHarness(t, newFakeBot(t).srv.URL)

	h.do(t, http.MethodGet, "/admin/users", "audit-1")
	h.do(t, http.MethodGet, "/missing", "audit-2")

	data, err := os.ReadFile(h.app.cfg.AccessLogPath())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "audit-2", entry["request_id"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/missing", entry["path"])
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
	assert.Contains(t, entry, "latency")
	assert.Contains(t, entry, "timestamp")
}

func TestTicksAndMetrics(t *testing.T) {
	bot := newFakeBot(t)
	h := newHarness(t, bot.srv.URL)

	report := h.app.scheduler.Tick(context.Background())
	assert.Equal(t, domain.TickActionRestart, report.Action)
	assert.EqualValues(t, 1, bot.starts.Load())

	status, body := h.do(t, http.MethodGet, "/admin/ticks?limit=10", "")
	assert.Equal(t, http.StatusOK, status)

	var list transport.TickList
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, report.ID, list.Ticks[0].ID)

	status, _ = h.do(t, http.MethodGet, "/admin/ticks?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, status)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://gateway/metrics")
	require.NoError(t, h.client.DoTimeout(req, resp, 5*time.Second))

	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "botgateway_health_ticks_total")
	assert.Contains(t, string(resp.Body()), "botgateway_downstream_requests_total")
}

func TestTicks_LeaseSharedAcrossReplicas(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	bot := newFakeBot(t)
	replicas := make([]*harness, 2)
	for i := range replicas {
		cfg := testConfig(t, bot.srv.URL)
		cfg.Redis.URL = "redis://" + s.Addr()
		cfg.Health.Schedule = "@yearly"
		cfg.Health.LeaseTTL = time.Minute
		replicas[i] = newHarnessWithConfig(t, cfg)
	}

	first := replicas[0].app.scheduler.Tick(context.Background())
	second := replicas[1].app.scheduler.Tick(context.Background())

	assert.Equal(t, domain.TickActionRestart, first.Action)
	assert.Equal(t, domain.TickActionSkipped, second.Action)
	assert.EqualValues(t, 1, bot.starts.Load(), "only the lease holder restarts the bot")
}
