// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heart-risk-dashboard/internal/common/config"
	"heart-risk-dashboard/internal/common/database"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
	"heart-risk-dashboard/internal/session"
	"heart-risk-dashboard/internal/ui"
)

// backend mimics the prediction service: risk rises with age and answers
// with the extra explanation field the real service sends.
func backend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		var req predict.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prob := req.Features["age"] / 110
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"prob":        prob,
			"is_risk":     prob > 0.5,
			"shap_base64": "iVBORw0KGgo=",
		})
	})
	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	dashboard *httptest.Server
	ui        *ui.Server
	registry  *session.Registry
}

// startDashboard wires the dashboard the way cmd/dashboard does, against a
// Redis session store.
func startDashboard(t *testing.T, backendURL, redisAddr string) *stack {
	log := logger.NewZapAdapter(zap.NewNop())

	cfg := config.PredictionConfig{BaseURL: backendURL, PredictPath: "/api/predict", AssetsPath: "/assets/"}
	s := schema.Default()
	client := predict.NewClient(cfg, predict.WithSchema(s), predict.WithLogger(log))

	rdb := database.NewRedis(config.RedisConfig{Address: redisAddr})
	require.NoError(t, rdb.Ping(context.Background()))
	t.Cleanup(func() { _ = rdb.Close() })

	registry := session.NewRegistry(session.Config{
		Schema:    s,
		Predictor: client,
		Store:     session.NewRedisStore(rdb.Client, "e2e:", time.Hour),
		TTL:       time.Hour,
		Logger:    log,
		FormOptions: []form.Option{
			form.WithBackendURL(client.BaseURL()),
		},
	})

	handler, err := ui.NewServer(ui.Options{
		Registry: registry,
		Schema:   s,
		Assets:   client,
		Logger:   log,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &stack{dashboard: srv, ui: handler, registry: registry}
}

func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func getState(t *testing.T, c *http.Client, base string) ui.StateView {
	t.Helper()
	resp, err := c.Get(base + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view ui.StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestFullE2E(t *testing.T) {
	be := backend(t)
	mr := miniredis.RunT(t)
	first := startDashboard(t, be.URL, mr.Addr())
	browser := newBrowser(t)

	// edit two fields and predict through the HTML form
	resp, err := browser.PostForm(first.dashboard.URL+"/fields/age", url.Values{"value": {"88"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = browser.PostForm(first.dashboard.URL+"/predict", url.Values{"slope": {"2"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first.ui.Wait()

	resp, err = browser.Get(first.dashboard.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "80.00%")
	assert.Contains(t, string(body), "High Risk")
	assert.Contains(t, string(body), be.URL+"/assets/conf_matrix.png")

	// gallery links resolve against the backend
	img, err := http.Get(be.URL + "/assets/roc_comparison.png")
	require.NoError(t, err)
	img.Body.Close()
	assert.Equal(t, "image/png", img.Header.Get("Content-Type"))

	// a second dashboard sharing Redis restores the session
	second := startDashboard(t, be.URL, mr.Addr())
	restored := getState(t, browser, second.dashboard.URL)
	assert.Equal(t, 88.0, restored.Values["age"])
	assert.Equal(t, 2.0, restored.Values["slope"])
	require.NotNil(t, restored.Result)
	assert.Equal(t, "80.00%", restored.Result.Probability)

	// an unrelated browser starts from the defaults
	other := getState(t, newBrowser(t), second.dashboard.URL)
	assert.Equal(t, 55.0, other.Values["age"])
	assert.Nil(t, other.Result)
}

func TestE2E_BackendDown(t *testing.T) {
	be := backend(t)
	mr := miniredis.RunT(t)
	st := startDashboard(t, be.URL, mr.Addr())
	browser := newBrowser(t)

	resp, err := browser.Post(st.dashboard.URL+"/api/predict", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	be.Close()

	resp, err = browser.Post(st.dashboard.URL+"/api/predict", "application/json", nil)
	require.NoError(t, err)
	var view ui.StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NotNil(t, view.Notice)
	assert.Equal(t, form.TransportFailure, view.Notice.Kind)
	assert.Contains(t, view.Notice.Message, be.URL)
	require.NotNil(t, view.Result, "earlier result stays visible")
	assert.Equal(t, "50.00%", view.Result.Probability)
	assert.False(t, view.InFlight)
}

func TestE2E_ConcurrentBrowsers(t *testing.T) {
	be := backend(t)
	mr := miniredis.RunT(t)
	st := startDashboard(t, be.URL, mr.Addr())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(age int) {
			defer wg.Done()
			browser := newBrowser(t)
			resp, err := browser.PostForm(st.dashboard.URL+"/predict", url.Values{"age": {strconv.Itoa(age)}})
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}(20 + i*10)
	}
	wg.Wait()
	st.ui.Wait()

	assert.Equal(t, 8, st.registry.Len())
	for _, key := range mr.Keys() {
		var snap session.Snapshot
		require.NoError(t, json.Unmarshal([]byte(mustGet(t, mr, key)), &snap))
		assert.NotNil(t, snap.Result, key)
	}
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func BenchmarkSubmit(b *testing.B) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prob":0.42,"is_risk":false}`))
	}))
	defer srv.Close()

	cfg := config.PredictionConfig{BaseURL: srv.URL, PredictPath: "/api/predict", AssetsPath: "/assets/"}
	s := schema.Default()
	ctrl := form.New(s, predict.NewClient(cfg, predict.WithSchema(s)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ctrl.Submit(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
