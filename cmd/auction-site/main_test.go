package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"auction-site/internal/api/handlers"
	"auction-site/internal/config"
	"auction-site/internal/currency"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "rates"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	cfg := &config.Config{Instance: config.InstanceConfig{ID: "test-1"}}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordClosed(true)

	e := newServer(cfg, handlers.Services{}, nil, reg, logger.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "test-1", health["instance"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `auction_closing_items_closed_total{outcome="sold"} 1`)
}

func TestServer_CORSAllowsIdentityHeader(t *testing.T) {
	e := newServer(&config.Config{}, handlers.Services{}, nil, prometheus.NewRegistry(), logger.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/items", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}

func TestRenderRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date, USD, JPY, \n17 October 2025, 1.1000, 160.00, \n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, renderRates(&out, currency.NewConverter(path, "EUR"), 100))

	text := out.String()
	assert.Contains(t, text, "100 EUR")
	assert.Contains(t, text, "110.00 USD")
	assert.Contains(t, text, "16000.00 JPY")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("EUR")), bytes.Index(out.Bytes(), []byte("JPY")))
}
