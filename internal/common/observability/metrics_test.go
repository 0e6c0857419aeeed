package observability

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest_ExportedThroughRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := NewWithRegisterer("dashboard-test", reg)
	require.NoError(t, err)
	defer obs.Shutdown()

	obs.RecordRequest(context.Background(), http.MethodPost, "/predict", http.StatusOK, 12*time.Millisecond)
	obs.RecordRequest(context.Background(), http.MethodGet, "/", http.StatusOK, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "http_server_requests")
	assert.Contains(t, joined, "http_server_duration")
}

func TestRecordRequest_NilReceiver(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordRequest(context.Background(), http.MethodGet, "/", http.StatusOK, time.Millisecond)
		obs.Shutdown()
	})
}
