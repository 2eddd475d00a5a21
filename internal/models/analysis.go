package models

// Track condition values accepted by the analysis backend.
const (
	TrackConditionDry  = "dry"
	TrackConditionDamp = "damp"
	TrackConditionWet  = "wet"
	TrackConditionRain = "rain"
)

// ValidTrackConditions lists the accepted track_condition values in the
// order the backend documents them. Out-of-set input falls back to dry.
var ValidTrackConditions = []string{
	TrackConditionDry,
	TrackConditionDamp,
	TrackConditionWet,
	TrackConditionRain,
}

// IsValidTrackCondition reports whether cond is one of the accepted values.
func IsValidTrackCondition(cond string) bool {
	for _, c := range ValidTrackConditions {
		if c == cond {
			return true
		}
	}
	return false
}

// Analysis processing states reported by the status endpoint.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// ScoreBreakdown holds the four sub-scores composing a performance score.
// The per-category maxima (30, 25, 25, 20) sum to exactly 100.
type ScoreBreakdown struct {
	ApexPrecision         float64 `json:"apex_precision"`
	TrajectoryConsistency float64 `json:"trajectory_consistency"`
	ApexSpeed             float64 `json:"apex_speed"`
	SectorTimes           float64 `json:"sector_times"`
}

// Sum returns the total of the four breakdown fields.
func (b ScoreBreakdown) Sum() float64 {
	return b.ApexPrecision + b.TrajectoryConsistency + b.ApexSpeed + b.SectorTimes
}

// PerformanceScore is the backend's overall scoring of a session.
type PerformanceScore struct {
	OverallScore float64        `json:"overall_score"`
	Grade        string         `json:"grade"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Percentile   *float64       `json:"percentile,omitempty"`
}

// CornerAnalysis describes a single detected corner after normalization.
type CornerAnalysis struct {
	CornerID          int      `json:"corner_id"`
	CornerNumber      int      `json:"corner_number"`
	CornerType        string   `json:"corner_type"`
	ApexSpeedReal     float64  `json:"apex_speed_real"`
	ApexSpeedOptimal  float64  `json:"apex_speed_optimal"`
	SpeedEfficiency   float64  `json:"speed_efficiency"`
	ApexDistanceError float64  `json:"apex_distance_error"`
	ApexDirectionErr  string   `json:"apex_direction_error"`
	LateralGMax       float64  `json:"lateral_g_max"`
	TimeLost          float64  `json:"time_lost"`
	Grade             string   `json:"grade"`
	Score             float64  `json:"score"`
	EntrySpeed        *float64 `json:"entry_speed,omitempty"`
	ExitSpeed         *float64 `json:"exit_speed,omitempty"`
	TargetEntrySpeed  *float64 `json:"target_entry_speed,omitempty"`
	TargetExitSpeed   *float64 `json:"target_exit_speed,omitempty"`
}

// CoachingAdvice is one piece of coaching output, pre-sorted by priority
// by the backend.
type CoachingAdvice struct {
	Priority      int     `json:"priority"`
	Category      string  `json:"category"`
	ImpactSeconds float64 `json:"impact_seconds"`
	Corner        *int    `json:"corner,omitempty"`
	Message       string  `json:"message"`
	Explanation   string  `json:"explanation"`
	Difficulty    string  `json:"difficulty"`
}

// Statistics carries processing metadata attached to a result.
type Statistics struct {
	ProcessingTimeSeconds  float64 `json:"processing_time_seconds"`
	DataPoints             int     `json:"data_points"`
	BestCorners            []int   `json:"best_corners"`
	WorstCorners           []int   `json:"worst_corners"`
	AvgApexDistance        float64 `json:"avg_apex_distance"`
	AvgApexSpeedEfficiency float64 `json:"avg_apex_speed_efficiency"`
	LapsAnalyzed           *int    `json:"laps_analyzed,omitempty"`
}

// SessionConditions records track state supplied at upload time.
type SessionConditions struct {
	TrackCondition   string   `json:"track_condition"`
	TrackTemperature *float64 `json:"track_temperature,omitempty"`
}

// AnalysisResult is the canonical, post-normalization analysis schema.
type AnalysisResult struct {
	Success           bool               `json:"success"`
	AnalysisID        string             `json:"analysis_id"`
	Timestamp         string             `json:"timestamp"`
	CornersDetected   int                `json:"corners_detected"`
	LapTime           float64            `json:"lap_time"`
	BestLapTime       *float64           `json:"best_lap_time,omitempty"`
	AvgLapTime        *float64           `json:"avg_lap_time,omitempty"`
	LapTimes          []float64          `json:"lap_times,omitempty"`
	PerformanceScore  PerformanceScore   `json:"performance_score"`
	CornerAnalysis    []CornerAnalysis   `json:"corner_analysis"`
	CoachingAdvice    []CoachingAdvice   `json:"coaching_advice"`
	Plots             map[string]string  `json:"plots"`
	Statistics        Statistics         `json:"statistics"`
	SessionConditions *SessionConditions `json:"session_conditions,omitempty"`
}

// LapInfo describes one lap detected during a parse-laps preview.
type LapInfo struct {
	LapNumber      int     `json:"lap_number"`
	LapTimeSeconds float64 `json:"lap_time_seconds"`
	PointsCount    int     `json:"points_count"`
	IsOutlier      bool    `json:"is_outlier"`
}

// AnalysisStatus is the processing state of a submitted analysis.
type AnalysisStatus struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// BackendHealth is the health endpoint payload.
type BackendHealth struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// StoredAnalysis wraps a result for local persistence. Timestamp is the
// store-write time in epoch milliseconds, not the backend timestamp.
type StoredAnalysis struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Result    AnalysisResult `json:"result"`
}

// AnalysisSummary is the lightweight projection used for listings.
type AnalysisSummary struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Timestamp   int64   `json:"timestamp"`
	Score       int     `json:"score"`
	CornerCount int     `json:"corner_count"`
	LapTime     float64 `json:"lap_time"`
	Grade       string  `json:"grade"`
	Filename    string  `json:"filename,omitempty"`
}

// ValidationResult is the outcome of pre-upload file validation.
type ValidationResult struct {
	Valid bool
	Error string
}
