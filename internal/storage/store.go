package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/apex-telemetry/internal/metrics"
	"github.com/yourusername/apex-telemetry/internal/models"
)

const (
	indexPrefix = "apex_analyses_index_"
	itemPrefix  = "apex_analysis_"

	// GuestIdentity is the reserved partition for callers with no
	// identity. Guest data and per-user data never collide.
	GuestIdentity = "guest"

	// DefaultMaxStored is the per-identity retention cap
	DefaultMaxStored = 20
)

// Store persists analysis results keyed by identity, maintains an
// ordered index per identity and enforces oldest-first retention after
// every save.
type Store struct {
	kv     KeyValue
	max    int
	logger *logrus.Logger
}

// NewStore creates a store over the given medium. maxStored <= 0 falls
// back to DefaultMaxStored.
func NewStore(kv KeyValue, maxStored int, logger *logrus.Logger) *Store {
	if maxStored <= 0 {
		maxStored = DefaultMaxStored
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Store{kv: kv, max: maxStored, logger: logger}
}

// identitySuffix maps an optional identity onto its storage partition
func identitySuffix(identity string) string {
	if s := strings.TrimSpace(identity); s != "" {
		return s
	}
	return GuestIdentity
}

func indexKey(suffix string) string {
	return indexPrefix + suffix
}

func itemKey(suffix, id string) string {
	return fmt.Sprintf("%s%s_%s", itemPrefix, suffix, id)
}

// generateID builds a new analysis id: epoch-millis prefix plus a short
// random suffix. Not guaranteed globally unique; the collision
// probability is negligible and no retry loop is attempted.
func generateID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), suffix)
}

// Save persists a result under the given identity and returns its id.
// The result's analysis_id becomes the id when present, otherwise a new
// id is generated. Retention is enforced after the write; the index
// rewrite is always the last step.
func (s *Store) Save(result *models.AnalysisResult, identity string) (string, error) {
	suffix := identitySuffix(identity)

	if err := s.checkAvailable(); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save").Inc()
		return "", err
	}

	id := result.AnalysisID
	if strings.TrimSpace(id) == "" {
		id = generateID()
	}

	stored := models.StoredAnalysis{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Result:    *result,
	}
	stored.Result.AnalysisID = id

	data, err := json.Marshal(stored)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save").Inc()
		return "", models.WrapError(models.KindSerialization, "failed to encode analysis result", err)
	}

	if err := s.kv.Set(itemKey(suffix, id), string(data)); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("save").Inc()
		return "", models.WrapError(models.KindStorageUnavailable, "failed to write analysis result", err)
	}

	index := s.readIndex(suffix)
	if !contains(index, id) {
		index = append(index, id)
		if err := s.writeIndex(suffix, index); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("save").Inc()
			return "", err
		}
	}

	s.enforceRetention(suffix)

	s.logger.WithFields(logrus.Fields{
		"id":       id,
		"identity": suffix,
	}).Debug("Saved analysis")
	return id, nil
}

// ListSummaries returns lightweight projections of every stored analysis
// for the identity, most recent first. Unreadable entries are skipped
// and logged, never fatal.
func (s *Store) ListSummaries(identity string) ([]models.AnalysisSummary, error) {
	suffix := identitySuffix(identity)
	index := s.readIndex(suffix)

	summaries := make([]models.AnalysisSummary, 0, len(index))
	for _, id := range index {
		stored, ok := s.readEntry(suffix, id)
		if !ok {
			continue
		}

		summary := models.AnalysisSummary{
			ID:          stored.ID,
			Date:        time.UnixMilli(stored.Timestamp).UTC().Format(time.RFC3339),
			Timestamp:   stored.Timestamp,
			Score:       int(math.Round(stored.Result.PerformanceScore.OverallScore)),
			CornerCount: stored.Result.CornersDetected,
			LapTime:     stored.Result.LapTime,
			Grade:       stored.Result.PerformanceScore.Grade,
		}
		if stored.Result.AnalysisID != "" {
			summary.Filename = stored.Result.AnalysisID + ".json"
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
	return summaries, nil
}

// GetByID returns the stored result, or nil for a blank id or a missing
// or unreadable entry. Never an error for "not found".
func (s *Store) GetByID(id, identity string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	suffix := identitySuffix(identity)
	stored, ok := s.readEntry(suffix, id)
	if !ok {
		return nil, nil
	}
	return &stored.Result, nil
}

// DeleteByID removes one entry. True iff it existed and was removed;
// the index rewrite is the last step.
func (s *Store) DeleteByID(id, identity string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	suffix := identitySuffix(identity)

	if _, present, err := s.kv.Get(itemKey(suffix, id)); err != nil || !present {
		return false, nil
	}

	if err := s.kv.Remove(itemKey(suffix, id)); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("delete").Inc()
		return false, models.WrapError(models.KindStorageUnavailable, "failed to delete analysis", err)
	}

	index := s.readIndex(suffix)
	next := make([]string, 0, len(index))
	for _, entry := range index {
		if entry != id {
			next = append(next, entry)
		}
	}
	if err := s.writeIndex(suffix, next); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the size of the identity's index
func (s *Store) Count(identity string) (int, error) {
	return len(s.readIndex(identitySuffix(identity))), nil
}

// Exists reports whether an entry is stored under the id
func (s *Store) Exists(id, identity string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	_, present, err := s.kv.Get(itemKey(identitySuffix(identity), id))
	if err != nil {
		return false, models.WrapError(models.KindStorageUnavailable, "failed to read analysis", err)
	}
	return present, nil
}

// ClearAll removes every entry for the identity and returns the number
// removed. Other identities are untouched.
func (s *Store) ClearAll(identity string) (int, error) {
	suffix := identitySuffix(identity)
	index := s.readIndex(suffix)

	removed := 0
	for _, id := range index {
		if err := s.kv.Remove(itemKey(suffix, id)); err != nil {
			s.logger.WithError(err).WithField("id", id).Warn("Failed to remove analysis during clear")
			continue
		}
		removed++
	}

	if err := s.kv.Remove(indexKey(suffix)); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("clear").Inc()
		return removed, models.WrapError(models.KindStorageUnavailable, "failed to reset index", err)
	}
	return removed, nil
}

// ExportJSON serializes a stored result as formatted JSON bytes, for
// download. Unknown ids fail with a not_found error.
func (s *Store) ExportJSON(id, identity string) ([]byte, error) {
	result, err := s.GetByID(id, identity)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, models.NewError(models.KindNotFound, fmt.Sprintf("analysis not found: %s", id))
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, models.WrapError(models.KindSerialization, "failed to encode analysis for export", err)
	}
	return data, nil
}

// enforceRetention evicts the oldest entries once the identity's count
// exceeds the cap. Entries that fail to parse rank as timestamp 0 and
// go first. Best effort: eviction failures are logged, never surfaced.
func (s *Store) enforceRetention(suffix string) {
	index := s.readIndex(suffix)
	if len(index) <= s.max {
		return
	}

	type ranked struct {
		id        string
		timestamp int64
	}
	entries := make([]ranked, len(index))
	for i, id := range index {
		entries[i] = ranked{id: id}
		if stored, ok := s.readEntry(suffix, id); ok {
			entries[i].timestamp = stored.Timestamp
		}
	}

	// Stable sort keeps insertion order for equal timestamps, so ties
	// evict in write order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].timestamp < entries[j].timestamp
	})

	excess := len(entries) - s.max
	for _, entry := range entries[:excess] {
		if err := s.kv.Remove(itemKey(suffix, entry.id)); err != nil {
			s.logger.WithError(err).WithField("id", entry.id).Warn("Failed to evict analysis")
		}
		metrics.StoredAnalysesEvictedTotal.Inc()
	}

	next := make([]string, 0, s.max)
	for _, entry := range entries[excess:] {
		next = append(next, entry.id)
	}
	if err := s.writeIndex(suffix, next); err != nil {
		s.logger.WithError(err).Warn("Failed to rewrite index after eviction")
	}
}

// checkAvailable probes the medium with a write/remove round trip
func (s *Store) checkAvailable() error {
	const probe = "__apex_storage_probe__"
	if err := s.kv.Set(probe, "1"); err != nil {
		return models.WrapError(models.KindStorageUnavailable, "local storage is not writable", err)
	}
	if err := s.kv.Remove(probe); err != nil {
		return models.WrapError(models.KindStorageUnavailable, "local storage is not writable", err)
	}
	return nil
}

// readIndex loads the identity's id list. Unreadable or corrupt indexes
// degrade to empty, matching the store's repair-over-reject posture.
func (s *Store) readIndex(suffix string) []string {
	raw, present, err := s.kv.Get(indexKey(suffix))
	if err != nil || !present {
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read analyses index")
		}
		return nil
	}
	var index []string
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		s.logger.WithError(err).Warn("Corrupt analyses index, treating as empty")
		return nil
	}
	return index
}

func (s *Store) writeIndex(suffix string, index []string) error {
	data, err := json.Marshal(index)
	if err != nil {
		return models.WrapError(models.KindSerialization, "failed to encode analyses index", err)
	}
	if err := s.kv.Set(indexKey(suffix), string(data)); err != nil {
		return models.WrapError(models.KindStorageUnavailable, "failed to write analyses index", err)
	}
	return nil
}

// readEntry loads and decodes one stored analysis. Missing and corrupt
// entries both report !ok; corruption is logged.
func (s *Store) readEntry(suffix, id string) (*models.StoredAnalysis, bool) {
	raw, present, err := s.kv.Get(itemKey(suffix, id))
	if err != nil {
		s.logger.WithError(err).WithField("id", id).Warn("Failed to read analysis")
		return nil, false
	}
	if !present {
		return nil, false
	}
	stored := &models.StoredAnalysis{}
	if err := json.Unmarshal([]byte(raw), stored); err != nil {
		s.logger.WithError(err).WithField("id", id).Warn("Corrupt analysis entry, skipping")
		return nil, false
	}
	return stored, true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
