package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/apex-telemetry/internal/config"
	"github.com/yourusername/apex-telemetry/internal/logger"
	"github.com/yourusername/apex-telemetry/internal/models"
	"github.com/yourusername/apex-telemetry/internal/storage"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.AnalyzeTimeoutSeconds = 2
	cfg.API.LapsTimeoutSeconds = 2
	cfg.API.StatusTimeoutSeconds = 2
	cfg.API.HealthTimeoutSeconds = 1
	cfg.API.RateLimit = 1000
	return NewClient(cfg, logger.NewNopLogger())
}

func csvUpload(name string, size int) Upload {
	content := strings.Repeat("t,lat,lon,speed\n", size/16+1)[:size]
	return Upload{Name: name, Size: int64(size), Content: strings.NewReader(content)}
}

// analyzeFixture mimics the backend's response shape, alternate keys
// included, so the full normalize path is exercised.
const analyzeFixture = `{
	"success": true,
	"analysis_id": "abc123",
	"timestamp": "2026-08-30T14:02:11Z",
	"corners_detected": 1,
	"lap_time": 92.41,
	"performance_score": {
		"overall_score": 78,
		"grade": "B",
		"breakdown": {
			"apex_precision": 25,
			"trajectory_consistency": 18,
			"apex_speed": 20,
			"sector_times": 15
		}
	},
	"corner_analysis": [{"type": "left", "apex_speed_real": 70}],
	"coaching_advice": [{"time_impact_seconds": 1.2, "message": "Brake later"}],
	"plots": {"trajectory_2d": "/plots/abc123/trajectory.png"},
	"statistics": {"processing_time_seconds": 3.1, "data_points": 14200}
}`

func TestAnalyzeEndToEnd(t *testing.T) {
	var gotCondition string
	var gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/analyze", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotCondition = r.FormValue("track_condition")
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(analyzeFixture))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.Analyze(context.Background(), csvUpload("session.csv", 2048), &AnalyzeOptions{
		TrackCondition: models.TrackConditionDry,
	})
	require.NoError(t, err)

	assert.Equal(t, "dry", gotCondition)
	assert.Equal(t, "session.csv", gotFilename)
	assert.Equal(t, "abc123", result.AnalysisID)

	// Alternate keys repaired by the normalizer
	require.Len(t, result.CornerAnalysis, 1)
	assert.Equal(t, "left", result.CornerAnalysis[0].CornerType)
	assert.Equal(t, 70.0, result.CornerAnalysis[0].ApexSpeedReal)
	require.Len(t, result.CoachingAdvice, 1)
	assert.InDelta(t, 1.2, result.CoachingAdvice[0].ImpactSeconds, 1e-9)

	// Save and list through the store, as the upload flow composes it
	store := storage.NewStore(storage.NewMemoryKV(), 20, logger.NewNopLogger())
	id, err := store.Save(result, "u1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	summaries, err := store.ListSummaries("u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 78, summaries[0].Score)
	assert.Equal(t, "B", summaries[0].Grade)
}

func TestAnalyzeOptionalFields(t *testing.T) {
	var gotLapFilter, gotTemperature string
	var hadLapFilter, hadTemperature bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotLapFilter = r.FormValue("lap_filter")
		_, hadLapFilter = r.MultipartForm.Value["lap_filter"]
		gotTemperature = r.FormValue("track_temperature")
		_, hadTemperature = r.MultipartForm.Value["track_temperature"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(analyzeFixture))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	temp := 28.5
	_, err := c.Analyze(context.Background(), csvUpload("session.csv", 2048), &AnalyzeOptions{
		LapFilter:        []int{2, 3},
		TrackCondition:   "monsoon", // out of set, must fall back to dry
		TrackTemperature: &temp,
	})
	require.NoError(t, err)
	assert.True(t, hadLapFilter)
	assert.Equal(t, "[2,3]", gotLapFilter)
	assert.True(t, hadTemperature)
	assert.Equal(t, "28.5", gotTemperature)

	// Empty lap filter and nil temperature are omitted entirely
	_, err = c.Analyze(context.Background(), csvUpload("session.csv", 2048), &AnalyzeOptions{})
	require.NoError(t, err)
	assert.False(t, hadLapFilter)
	assert.False(t, hadTemperature)
}

func TestAnalyzeValidationShortCircuits(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Analyze(context.Background(), csvUpload("session.txt", 2048), nil)
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	assert.Zero(t, requests, "validation failure must not hit the network")
}

func TestAnalyzeSuccessFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "analysis_id": "x"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Analyze(context.Background(), csvUpload("session.csv", 2048), nil)
	require.Error(t, err)
	assert.Equal(t, models.KindAnalysisFailed, models.KindOf(err))
}

func TestAnalyzeHTTPErrorWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success": false, "error": "validation", "message": "no GPS channel found"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Analyze(context.Background(), csvUpload("session.csv", 2048), nil)
	require.Error(t, err)

	var taxErr *models.Error
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, models.KindValidation, taxErr.Kind)
	assert.Equal(t, "no GPS channel found", taxErr.Message)
}

func TestAnalyzeHTTPErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Analyze(context.Background(), csvUpload("session.csv", 2048), nil)
	require.Error(t, err)

	var taxErr *models.Error
	require.ErrorAs(t, err, &taxErr)
	assert.Equal(t, models.KindHTTPError, taxErr.Kind)
	assert.Contains(t, taxErr.Message, "502")
}

func TestHealthTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	start := time.Now()
	_, err := c.Health(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.Less(t, elapsed, 1400*time.Millisecond, "should abort at the 1s health timeout")
}

func TestNetworkErrorClassification(t *testing.T) {
	// Nothing listens here
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindNetwork, models.KindOf(err))

	assert.False(t, c.IsReachable(context.Background()))
}

func TestIsReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok", "version": "1.4.2"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.True(t, c.IsReachable(context.Background()))

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.4.2", health.Version)
}

func TestParseLaps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/parse-laps", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"laps": [
				{"lap_number": 1, "lap_time_seconds": 95.2, "points_count": 4100, "is_outlier": false},
				{"lap_number": 2, "lap_time_seconds": 92.7, "points_count": 4050, "is_outlier": false},
				{"lap_number": 3, "lap_time_seconds": 131.9, "points_count": 5200, "is_outlier": true}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	laps, err := c.ParseLaps(context.Background(), csvUpload("session.csv", 2048))
	require.NoError(t, err)
	require.Len(t, laps, 3)
	assert.Equal(t, 2, laps[1].LapNumber)
	assert.True(t, laps[2].IsOutlier)
}

func TestParseLapsInvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Success false", `{"success": false, "laps": []}`},
		{"Laps not a list", `{"success": true, "laps": {"lap_number": 1}}`},
		{"Laps missing", `{"success": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, err := c.ParseLaps(context.Background(), csvUpload("session.csv", 2048))
			require.Error(t, err)
			assert.Equal(t, models.KindInvalidResponse, models.KindOf(err))
		})
	}
}

func TestStatusBlankID(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.Status(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/status/abc123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.AnalysisStatus{
			AnalysisID: "abc123",
			Status:     models.StatusCompleted,
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	status, err := c.Status(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
}
