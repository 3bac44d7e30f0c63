package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *logging.TestLogger) {
	t.Helper()
	scanCfg, err := schema.NewScanConfiguration(schema.WithWorkDir(t.TempDir()), schema.WithMemoryLimit(1<<30))
	require.NoError(t, err)
	baseCfg := &contract.Config{Scan: scanCfg}

	analyzer := &contract.MockContentAnalyzer{}
	analyzer.On("Analyze", mock.Anything, mock.Anything, "config/prod.env").Return(schema.AnalyzerOutput{FindingCount: 3}, nil).Maybe()
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(schema.AnalyzerOutput{}, nil).Maybe()
	sampler := &contract.MockMemorySampler{}
	sampler.On("Sample").Return(uint64(64<<20), nil).Maybe()

	rt, err := core.NewRuntime(baseCfg, nil, core.WithRuntimeAnalyzer(analyzer), core.WithRuntimeSampler(sampler))
	require.NoError(t, err)

	logger := logging.NewTestLogger()
	s, err := NewServer(baseCfg, rt, logger.Logger, opts...)
	require.NoError(t, err)
	return s, logger
}

func writeLocalRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"cmd/main.go", "config/prod.env", "docs/guide.md"} {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("data for "+name), 0o644))
	}
	return root
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresRuntime(t *testing.T) {
	_, err := NewServer(&contract.Config{}, nil, nil)
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reposcan_")
}

func TestHandleScan(t *testing.T) {
	s, logger := newTestServer(t)
	root := writeLocalRepo(t)

	body, err := json.Marshal(contract.ScanOverrides{RepositoryURL: root, ScanLevel: "thorough"})
	require.NoError(t, err)
	rec := post(t, s, "/api/v1/scans", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary schema.ScanSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, schema.Complete, summary.Completeness)
	assert.Equal(t, 3, summary.ScannedFiles)
	assert.Equal(t, 3, summary.TotalFindings())

	logger.AssertLogged(t, zapcore.InfoLevel, "scan requested")
	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestHandleScanInvalidRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"repository_url":`},
		{"missing url", `{}`},
		{"bad level", `{"repository_url":"https://github.com/acme/widgets","scan_level":"turbo"}`},
		{"bad timeout", `{"repository_url":"https://github.com/acme/widgets","timeout":"later"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, "/api/v1/scans", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, contract.KindInvalidRequest, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleScanFailure(t *testing.T) {
	s, logger := newTestServer(t)

	body, err := json.Marshal(contract.ScanOverrides{RepositoryURL: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	rec := post(t, s, "/api/v1/scans", string(body))
	assert.GreaterOrEqual(t, rec.Code, http.StatusBadRequest)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Kind)
	assert.NotEmpty(t, logger.All())
}

func TestHandleScanRejectsWhenBusy(t *testing.T) {
	s, _ := newTestServer(t, WithMaxConcurrentScans(1))
	require.True(t, s.slots.TryAcquire(1))
	defer s.slots.Release(1)

	rec := post(t, s, "/api/v1/scans", `{"repository_url":"https://github.com/acme/widgets"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleEstimate(t *testing.T) {
	s, _ := newTestServer(t)
	root := writeLocalRepo(t)

	rec := post(t, s, "/api/v1/estimates", `{"repository_url":"`+filepath.ToSlash(root)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res schema.EstimateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Estimate.FileCount)
	assert.Equal(t, schema.NormalTier, res.Plan.Tier)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{contract.NewScanError(contract.KindInvalidRequest, "parse", nil), http.StatusBadRequest},
		{contract.NewScanError(contract.KindAuthenticationFailure, "clone", nil), http.StatusUnauthorized},
		{contract.NewScanError(contract.KindRepositoryUnreachable, "estimate", nil), http.StatusBadGateway},
		{contract.NewScanError(contract.KindCloneFailure, "clone", nil), http.StatusBadGateway},
		{contract.NewScanError(contract.KindTimeout, "clone", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{contract.NewScanError(contract.KindCancelled, "scan", context.Canceled), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}
