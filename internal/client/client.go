package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/apex-telemetry/internal/config"
	"github.com/yourusername/apex-telemetry/internal/metrics"
	"github.com/yourusername/apex-telemetry/internal/models"
	"github.com/yourusername/apex-telemetry/internal/normalize"
)

// Upload is a candidate telemetry file. Size must match the content
// length; it is what the validator checks before any network I/O.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// AnalyzeOptions carries optional submission parameters.
type AnalyzeOptions struct {
	// LapFilter restricts analysis to the listed lap numbers. Sent only
	// when non-empty.
	LapFilter []int
	// TrackCondition must be one of dry, damp, wet, rain. Out-of-set
	// values fall back to dry.
	TrackCondition string
	// TrackTemperature in degrees Celsius. Nil means unknown.
	TrackTemperature *float64
}

// Client issues timed, cancellable requests to the analysis backend.
// There is no built-in retry policy unless MaxRetries is raised in the
// API configuration; retries are the caller's responsibility.
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	validator *Validator
	norm      *normalize.Normalizer
	logger    *logrus.Logger

	analyzeTimeout time.Duration
	lapsTimeout    time.Duration
	statusTimeout  time.Duration
	healthTimeout  time.Duration
}

// NewClient creates a transport client for the configured backend
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.API.MaxRetries
	retryClient.Logger = nil

	return &Client{
		baseURL:        strings.TrimRight(cfg.API.BaseURL, "/"),
		http:           retryClient,
		limiter:        rate.NewLimiter(rate.Limit(cfg.API.RateLimit), 1),
		validator:      NewValidator(cfg.Upload),
		norm:           normalize.NewNormalizer(logger),
		logger:         logger,
		analyzeTimeout: time.Duration(cfg.API.AnalyzeTimeoutSeconds) * time.Second,
		lapsTimeout:    time.Duration(cfg.API.LapsTimeoutSeconds) * time.Second,
		statusTimeout:  time.Duration(cfg.API.StatusTimeoutSeconds) * time.Second,
		healthTimeout:  time.Duration(cfg.API.HealthTimeoutSeconds) * time.Second,
	}
}

// errorBody is the JSON shape the backend uses for error responses
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// rawAnalysisResponse shadows the two arrays that need alternate-key
// repair so they can be normalized before the result is returned.
type rawAnalysisResponse struct {
	models.AnalysisResult
	CornerAnalysis []map[string]any `json:"corner_analysis"`
	CoachingAdvice []map[string]any `json:"coaching_advice"`
}

type parseLapsResponse struct {
	Success bool            `json:"success"`
	Laps    json.RawMessage `json:"laps"`
}

// Analyze uploads a telemetry file and returns the normalized analysis
// result. Fails fast with a validation error before any network I/O.
func (c *Client) Analyze(ctx context.Context, file Upload, opts *AnalyzeOptions) (*models.AnalysisResult, error) {
	start := time.Now()
	defer func() {
		metrics.RequestLatency.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	}()

	if res := c.validator.Validate(file.Name, file.Size); !res.Valid {
		return nil, c.fail("analyze", models.NewError(models.KindValidation, res.Error))
	}

	body, contentType, err := buildAnalyzeForm(file, opts)
	if err != nil {
		return nil, c.fail("analyze", models.WrapError(models.KindUnknown, "failed to build multipart payload", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	data, err := c.post(ctx, "/api/v1/analyze", contentType, body)
	if err != nil {
		return nil, c.fail("analyze", err)
	}

	var raw rawAnalysisResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, c.fail("analyze", models.WrapError(models.KindInvalidResponse, "invalid JSON in analysis response", err))
	}

	result := raw.AnalysisResult
	result.CornerAnalysis = c.norm.Corners(raw.CornerAnalysis)
	result.CoachingAdvice = c.norm.Advices(raw.CoachingAdvice)

	// 2xx with success:false still means the analysis failed
	if !result.Success {
		return nil, c.fail("analyze", models.NewError(models.KindAnalysisFailed,
			"analysis failed, check that the telemetry file is valid"))
	}

	metrics.AnalysesSubmittedTotal.WithLabelValues("success").Inc()
	c.logger.WithFields(logrus.Fields{
		"analysis_id": result.AnalysisID,
		"corners":     result.CornersDetected,
	}).Info("Analysis completed")
	return &result, nil
}

// ParseLaps uploads a telemetry file and returns the detected laps,
// for lap selection before a full analysis.
func (c *Client) ParseLaps(ctx context.Context, file Upload) ([]models.LapInfo, error) {
	start := time.Now()
	defer func() {
		metrics.RequestLatency.WithLabelValues("parse_laps").Observe(time.Since(start).Seconds())
	}()

	if res := c.validator.Validate(file.Name, file.Size); !res.Valid {
		return nil, c.fail("parse_laps", models.NewError(models.KindValidation, res.Error))
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", file.Name)
	if err == nil {
		_, err = io.Copy(fw, file.Content)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, c.fail("parse_laps", models.WrapError(models.KindUnknown, "failed to build multipart payload", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.lapsTimeout)
	defer cancel()

	data, err := c.post(ctx, "/api/v1/parse-laps", mw.FormDataContentType(), body)
	if err != nil {
		return nil, c.fail("parse_laps", err)
	}

	var resp parseLapsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, c.fail("parse_laps", models.WrapError(models.KindInvalidResponse, "invalid JSON in parse-laps response", err))
	}

	var laps []models.LapInfo
	if !resp.Success || resp.Laps == nil || json.Unmarshal(resp.Laps, &laps) != nil {
		return nil, c.fail("parse_laps", models.NewError(models.KindInvalidResponse, "invalid parse-laps response"))
	}
	return laps, nil
}

// Status fetches the processing state of a submitted analysis
func (c *Client) Status(ctx context.Context, analysisID string) (*models.AnalysisStatus, error) {
	if strings.TrimSpace(analysisID) == "" {
		return nil, c.fail("status", models.NewError(models.KindValidation, "analysis id is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	data, err := c.get(ctx, "/api/v1/status/"+analysisID)
	if err != nil {
		return nil, c.fail("status", err)
	}

	status := &models.AnalysisStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, c.fail("status", models.WrapError(models.KindInvalidResponse, "invalid JSON in status response", err))
	}
	return status, nil
}

// Health checks that the backend is up and returns its health payload
func (c *Client) Health(ctx context.Context) (*models.BackendHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	data, err := c.get(ctx, "/health")
	if err != nil {
		return nil, c.fail("health", err)
	}

	health := &models.BackendHealth{}
	if err := json.Unmarshal(data, health); err != nil {
		return nil, c.fail("health", models.WrapError(models.KindInvalidResponse, "invalid JSON in health response", err))
	}
	return health, nil
}

// IsReachable reports whether the backend answers its health check.
// Useful for surfacing connectivity problems before an upload.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	return err == nil
}

// buildAnalyzeForm assembles the multipart body for a submission. Each
// call builds its own payload so overlapping submissions share nothing.
func buildAnalyzeForm(file Upload, opts *AnalyzeOptions) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, file.Content); err != nil {
		return nil, "", err
	}

	if opts != nil && len(opts.LapFilter) > 0 {
		encoded, err := json.Marshal(opts.LapFilter)
		if err != nil {
			return nil, "", err
		}
		if err := mw.WriteField("lap_filter", string(encoded)); err != nil {
			return nil, "", err
		}
	}

	condition := models.TrackConditionDry
	if opts != nil && models.IsValidTrackCondition(opts.TrackCondition) {
		condition = opts.TrackCondition
	}
	if err := mw.WriteField("track_condition", condition); err != nil {
		return nil, "", err
	}

	if opts != nil && opts.TrackTemperature != nil && isFinite(*opts.TrackTemperature) {
		temp := strconv.FormatFloat(*opts.TrackTemperature, 'f', -1, 64)
		if err := mw.WriteField("track_temperature", temp); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// post sends a multipart POST and returns the raw 2xx body, or a
// taxonomy error for any failure mode.
func (c *Client) post(ctx context.Context, path, contentType string, body *bytes.Buffer) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyTransport(err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body.Bytes())
	if err != nil {
		return nil, models.WrapError(models.KindUnknown, "failed to build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req)
}

// get sends a GET and returns the raw 2xx body
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyTransport(err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, models.WrapError(models.KindUnknown, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.WrapError(models.KindNetwork, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp.StatusCode, data)
	}
	return data, nil
}

// classifyTransport maps a transport failure onto the error taxonomy.
// Deadline expiry is a timeout, everything else is a connectivity issue.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.WrapError(models.KindTimeout,
			"request timed out, the file may be too large or the backend too slow", err)
	}
	if errors.Is(err, context.Canceled) {
		return models.WrapError(models.KindTimeout, "request was cancelled", err)
	}
	return models.WrapError(models.KindNetwork,
		"cannot reach the analysis backend, check connectivity and backend availability", err)
}

// httpError builds a taxonomy error from a non-2xx response. Error
// bodies are parsed opportunistically; a missing or unparseable body
// degrades to a generic status-based message.
func httpError(status int, data []byte) error {
	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil && body.Message != "" {
		kind := models.KindHTTPError
		if body.Error != "" && isTaxonomyKind(body.Error) {
			kind = models.ErrorKind(body.Error)
		}
		e := models.NewError(kind, body.Message)
		e.Details = body.Details
		return e
	}
	return models.NewError(models.KindHTTPError, fmt.Sprintf("server error (HTTP %d)", status))
}

func isTaxonomyKind(s string) bool {
	switch models.ErrorKind(s) {
	case models.KindValidation, models.KindTimeout, models.KindNetwork,
		models.KindHTTPError, models.KindAnalysisFailed, models.KindInvalidResponse,
		models.KindStorageUnavailable, models.KindSerialization,
		models.KindNotFound, models.KindUnknown:
		return true
	}
	return false
}

// fail records the error against the endpoint's metrics and logs it
func (c *Client) fail(endpoint string, err error) error {
	kind := models.KindOf(err)
	metrics.ClientErrorsTotal.WithLabelValues(endpoint, string(kind)).Inc()
	if endpoint == "analyze" {
		metrics.AnalysesSubmittedTotal.WithLabelValues("failure").Inc()
	}
	c.logger.WithError(err).WithFields(logrus.Fields{
		"endpoint": endpoint,
		"kind":     kind,
	}).Warn("Backend request failed")
	return err
}
