package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/castlens/castlens/internal/config"
	"github.com/castlens/castlens/internal/metrics"
	"github.com/castlens/castlens/internal/scorecache"
	"github.com/castlens/castlens/internal/server"
	"github.com/castlens/castlens/internal/store"
	"github.com/castlens/castlens/internal/upstream/neynar"
	"github.com/castlens/castlens/internal/upstream/talent"
	"github.com/gavv/httpexpect/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// startService assembles the full stack the way main does — memory
// store, cache coordinator, real upstream clients pointed at fakes —
// and serves it over a test listener.
func startService(t *testing.T, talentURL, neynarURL string) *httpexpect.Expect {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	recordStore := store.NewMemory()
	t.Cleanup(func() { _ = recordStore.Close(context.Background()) })

	talentClient := talent.New(talent.Config{
		BaseURL: talentURL,
		APIKey:  "test-key",
	}, nil, logger, recorder)
	neynarClient := neynar.New(neynar.Config{
		BaseURL: neynarURL,
		APIKey:  "test-key",
	}, nil, logger, recorder)

	scores := scorecache.New(scorecache.Config{
		Store:   recordStore,
		Expiry:  config.DefaultConfig().Cache.Expiry(),
		Logger:  logger,
		Metrics: recorder,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.Handle("/", server.NewHandler(scores, talentClient.FetchProfile, neynarClient, "memory", logger))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return httpexpect.Default(t, ts.URL)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func startFakeUpstreams(t *testing.T) (talentURL, neynarURL string) {
	t.Helper()

	talentMux := http.NewServeMux()
	talentMux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "3621" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profile":{"passport_id":"pp-1","id":"user-1","accounts":[{"source":"github","username":"horsefacts"}],"x_username":"horsefacts"}}`))
	})
	talentMux.HandleFunc("/scores", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scores":[{"slug":"builder_score","points":87},{"slug":"talent_score","points":64},{"slug":"creator_score","points":12}]}`))
	})
	talentServer := httptest.NewServer(talentMux)
	t.Cleanup(talentServer.Close)

	neynarMux := http.NewServeMux()
	neynarMux.HandleFunc("/v2/farcaster/user/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"users":[{"fid":3621,"username":"horsefacts","display_name":"horsefacts","pfp_url":"https://img.example/h.png"}]}}`))
	})
	neynarServer := httptest.NewServer(neynarMux)
	t.Cleanup(neynarServer.Close)

	return talentServer.URL, neynarServer.URL
}

func TestServiceSearchThenLookup(t *testing.T) {
	talentURL, neynarURL := startFakeUpstreams(t)
	e := startService(t, talentURL, neynarURL)

	users := e.GET("/api/search").WithQuery("q", "horse").
		Expect().Status(http.StatusOK).
		JSON().Object().Value("users").Array()
	users.Length().IsEqual(1)
	users.Value(0).Object().HasValue("username", "horsefacts")

	first := e.GET("/api/scores/3621").
		Expect().Status(http.StatusOK).
		JSON().Object()
	first.HasValue("isFromCache", false)
	first.Value("profile").Object().HasValue("builder_score", 87)
	first.Value("profile").Object().HasValue("talent_score", 64)

	second := e.GET("/api/scores/3621").
		Expect().Status(http.StatusOK).
		JSON().Object()
	second.HasValue("isFromCache", true)

	forced := e.GET("/api/scores/3621").WithQuery("refresh", "true").
		Expect().Status(http.StatusOK).
		JSON().Object()
	forced.HasValue("isFromCache", false)
}

func TestServiceUnknownFID(t *testing.T) {
	talentURL, neynarURL := startFakeUpstreams(t)
	e := startService(t, talentURL, neynarURL)

	e.GET("/api/scores/999").
		Expect().Status(http.StatusNotFound).
		JSON().Object().ContainsKey("error")
}

func TestServiceHealthAndMetrics(t *testing.T) {
	talentURL, neynarURL := startFakeUpstreams(t)
	e := startService(t, talentURL, neynarURL)

	e.GET("/healthz").
		Expect().Status(http.StatusOK).
		JSON().Object().HasValue("status", "ok").HasValue("store", "memory")

	e.GET("/api/scores/3621").Expect().Status(http.StatusOK)

	e.GET("/metrics").
		Expect().Status(http.StatusOK).
		Body().Contains("castlens_lookup_requests_total")
}
