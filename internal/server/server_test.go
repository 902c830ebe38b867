package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/mappingtable"
	"github.com/zsiec/gre2g/internal/registry"
)

type testEnv struct {
	server *Server
	store  *blobstore.FileSystemStore
	runs   *registry.MemoryRegistry
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Settings.BlobDBPath = filepath.Join(t.TempDir(), "db")
	cfg.Server.RateLimit = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	store, err := blobstore.NewFileSystemStore(cfg.Settings.BlobDBPath, mappingtable.FormatCBOR, nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize())
	require.NoError(t, store.ForceAddLevel([]string{"recordings", "chess"}, false))
	require.NoError(t, store.AddFile([]string{"recordings", "chess"}, []byte("raw video"), "match one.mp4", true))

	log := logrus.New()
	log.SetOutput(io.Discard)

	runs := registry.NewMemoryRegistry()
	return &testEnv{
		server: New(cfg, log, store, runs),
		store:  store,
		runs:   runs,
	}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.server.GetRouter().ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestNew(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.NotNil(t, env.server.router)
	assert.NotNil(t, env.server.healthMgr)
	assert.NotNil(t, env.server.errorHandler)
	assert.Nil(t, env.server.limiter, "rate limit 0 disables the limiter")
	assert.Equal(t, "127.0.0.1:8080", env.server.Addr())
}

func TestNewWithRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.RateLimit = 5
		c.Server.RateBurst = 10
	})
	require.NotNil(t, env.server.limiter)
	assert.Equal(t, 10, env.server.limiter.Burst())
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"blob_store"`)

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/ready").Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/live").Code)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Metrics.Enabled = true
		c.Metrics.Port = c.Server.Port
	})

	require.Equal(t, http.StatusOK, env.do(t, "GET", "/version").Code)

	rr := env.do(t, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `http_requests_total{method="GET",route="/version",status="2xx"}`)
}

func TestMetricsRouteOnSeparatePort(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Metrics.Enabled = true
		c.Metrics.Port = c.Server.Port + 1
	})

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/metrics").Code)
}

func TestServeAndShutdown(t *testing.T) {
	env := newTestEnv(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.NoError(t, env.server.Shutdown())
}
