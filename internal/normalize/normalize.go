// Package normalize repairs heterogeneous backend payloads into the
// canonical analysis schema. It never rejects input: every field has a
// typed default, alternate key names are accepted as fallbacks, and
// inconsistencies are reported through the logger only.
package normalize

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/apex-telemetry/internal/metrics"
	"github.com/yourusername/apex-telemetry/internal/models"
)

// Normalizer maps raw backend objects onto the canonical schema
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer creates a new normalizer. A nil logger disables diagnostics.
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Normalizer{logger: logger}
}

// Corner normalizes a raw corner object into CornerAnalysis. Alternate
// keys: "type" feeds corner_type, "apex_distance_m" feeds
// apex_distance_error. Missing expected keys are logged, never fatal.
func (n *Normalizer) Corner(raw map[string]any) models.CornerAnalysis {
	cornerType := "unknown"
	if v, ok := raw["corner_type"]; ok {
		cornerType = toString(v, "unknown")
	} else if v, ok := raw["type"]; ok {
		cornerType = toString(v, "unknown")
		n.fallback("corner_type", "type")
	}

	apexDistance := 0.0
	if v, ok := raw["apex_distance_error"]; ok {
		apexDistance = toFloat(v, 0)
	} else if v, ok := raw["apex_distance_m"]; ok {
		apexDistance = toFloat(v, 0)
		n.fallback("apex_distance_error", "apex_distance_m")
	}

	for _, key := range []string{"corner_id", "corner_number", "grade", "score"} {
		if _, ok := raw[key]; !ok {
			n.logger.WithField("key", key).Warn("corner: missing expected key")
		}
	}

	cornerID := toInt(raw["corner_id"], 0)
	cornerNumber := cornerID
	if v, ok := raw["corner_number"]; ok {
		cornerNumber = toInt(v, cornerID)
	}

	return models.CornerAnalysis{
		CornerID:          cornerID,
		CornerNumber:      cornerNumber,
		CornerType:        cornerType,
		ApexSpeedReal:     toFloat(raw["apex_speed_real"], 0),
		ApexSpeedOptimal:  toFloat(raw["apex_speed_optimal"], 0),
		SpeedEfficiency:   toFloat(raw["speed_efficiency"], 0),
		ApexDistanceError: apexDistance,
		ApexDirectionErr:  toString(raw["apex_direction_error"], "center"),
		LateralGMax:       toFloat(raw["lateral_g_max"], 0),
		TimeLost:          toFloat(raw["time_lost"], 0),
		Grade:             toString(raw["grade"], "C"),
		Score:             toFloat(raw["score"], 50),
		EntrySpeed:        toFloatPtr(raw["entry_speed"]),
		ExitSpeed:         toFloatPtr(raw["exit_speed"]),
		TargetEntrySpeed:  toFloatPtr(raw["target_entry_speed"]),
		TargetExitSpeed:   toFloatPtr(raw["target_exit_speed"]),
	}
}

// Advice normalizes a raw coaching advice object. Alternate key:
// "time_impact_seconds" feeds impact_seconds.
func (n *Normalizer) Advice(raw map[string]any) models.CoachingAdvice {
	impact := 0.0
	if v, ok := raw["impact_seconds"]; ok {
		impact = toFloat(v, 0)
	} else if v, ok := raw["time_impact_seconds"]; ok {
		impact = toFloat(v, 0)
		n.fallback("impact_seconds", "time_impact_seconds")
	}

	return models.CoachingAdvice{
		Priority:      toInt(raw["priority"], 5),
		Category:      toString(raw["category"], "global"),
		ImpactSeconds: impact,
		Corner:        toIntPtr(raw["corner"]),
		Message:       toString(raw["message"], ""),
		Explanation:   toString(raw["explanation"], ""),
		Difficulty:    toString(raw["difficulty"], "moyen"),
	}
}

// Corners normalizes a raw corner list, preserving order.
func (n *Normalizer) Corners(raws []map[string]any) []models.CornerAnalysis {
	corners := make([]models.CornerAnalysis, len(raws))
	for i, raw := range raws {
		corners[i] = n.Corner(raw)
	}
	return corners
}

// Advices normalizes a raw coaching advice list, preserving order.
func (n *Normalizer) Advices(raws []map[string]any) []models.CoachingAdvice {
	advices := make([]models.CoachingAdvice, len(raws))
	for i, raw := range raws {
		advices[i] = n.Advice(raw)
	}
	return advices
}

func (n *Normalizer) fallback(expected, got string) {
	metrics.NormalizerFallbacksTotal.WithLabelValues(expected).Inc()
	n.logger.WithFields(logrus.Fields{
		"expected": expected,
		"got":      got,
	}).Warn("normalizer: alternate key used")
}

// toFloat converts permissively to float64: numbers and numeric strings
// pass through, everything else becomes the default.
func toFloat(v any, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

func toInt(v any, def int) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		if i, err := strconv.Atoi(x); err == nil {
			return i
		}
		return def
	default:
		return def
	}
}

func toString(v any, def string) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return def
	default:
		return def
	}
}

func toFloatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f := toFloat(v, 0)
	return &f
}

func toIntPtr(v any) *int {
	if v == nil {
		return nil
	}
	i := toInt(v, 0)
	return &i
}
