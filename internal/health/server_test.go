package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

var healthNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStatus struct {
	last time.Time
	mode string
}

func (f fakeStatus) LastScan() time.Time { return f.last }
func (f fakeStatus) Mode() string        { return f.mode }

type statsStore struct {
	domain.DailyStats
}

func (s statsStore) StatsForDate(context.Context, string) (domain.DailyStats, error) {
	return s.DailyStats, nil
}

func serve(t *testing.T, status fakeStatus, stats domain.DailyStats) map[string]any {
	t.Helper()
	s := NewServer(":0", statsStore{stats}, status, slog.Default())
	s.now = func() time.Time { return healthNow }

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.srv.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth_HealthyWithRecentScan(t *testing.T) {
	body := serve(t,
		fakeStatus{last: healthNow.Add(-5 * time.Minute), mode: "active"},
		domain.DailyStats{TradesExecuted: 2, Bankroll: 1980},
	)

	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "active", body["mode"])
	assert.Equal(t, float64(5), body["minutes_since_scan"])
	assert.Equal(t, float64(2), body["trades_executed"])
	assert.Equal(t, float64(1980), body["bankroll_usd"])
}

func TestHealth_DegradedWhenScanStale(t *testing.T) {
	body := serve(t,
		fakeStatus{last: healthNow.Add(-45 * time.Minute), mode: "active"},
		domain.DailyStats{},
	)
	assert.Equal(t, "degraded", body["status"])
}

func TestHealth_InitializingBeforeFirstScan(t *testing.T) {
	body := serve(t, fakeStatus{mode: "initializing"}, domain.DailyStats{})
	assert.Equal(t, "initializing", body["status"])
	assert.Nil(t, body["last_scan"])
}
