// Package score derives consistent display values from potentially
// inconsistent server data. All functions are pure over their inputs.
package score

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/apex-telemetry/internal/models"
)

// Per-category breakdown maxima. The four sum to exactly 100.
const (
	MaxApexPrecision         = 30.0
	MaxTrajectoryConsistency = 25.0
	MaxApexSpeed             = 25.0
	MaxSectorTimes           = 20.0
)

// scoreTolerance is the allowed drift between overall_score and the
// breakdown sum before the display layer substitutes the sum.
const scoreTolerance = 0.5

// DisplayScore returns the score to show for a performance score:
// overall_score unless it diverges from the breakdown sum by more than
// 0.5, in which case the sum (rounded to one decimal) is used and a
// warning is logged. The stored value is never corrected.
func DisplayScore(ps models.PerformanceScore, logger *logrus.Logger) float64 {
	sum := ps.Breakdown.Sum()
	if math.Abs(sum-ps.OverallScore) > scoreTolerance {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"overall_score": ps.OverallScore,
				"breakdown_sum": sum,
			}).Warn("Score inconsistency, using breakdown sum as fallback")
		}
		return math.Round(sum*10) / 10
	}
	return ps.OverallScore
}

// Stats aggregates a set of analysis summaries for display.
type Stats struct {
	Total        int
	AverageScore int
	BestScore    int
	Best         *models.AnalysisSummary
}

// Aggregate computes totals over whatever summaries are supplied. Empty
// input yields zero values, not an error.
func Aggregate(summaries []models.AnalysisSummary) Stats {
	stats := Stats{Total: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}

	sum := 0
	for i := range summaries {
		sum += summaries[i].Score
		if summaries[i].Score > stats.BestScore || stats.Best == nil {
			stats.BestScore = summaries[i].Score
			stats.Best = &summaries[i]
		}
	}
	stats.AverageScore = int(math.Round(float64(sum) / float64(len(summaries))))
	return stats
}
