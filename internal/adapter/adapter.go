// Package adapter turns untrusted, possibly partial snapshot payloads into
// canonical snapshots.
//
// Metric values are kept exactly as they arrived. A payload that reports
// totalDomains as "150" yields a snapshot whose TotalDomains is the string
// token "150", not the number 150.
package adapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// Payload member names.
const (
	keyAggregates     = "aggregates"
	keyClassification = "classification"
	keySnapshotID     = "snapshotId"
	keyTimestamp      = "timestamp"
)

// Adapter normalizes snapshot payloads. Its id counter and warning log are
// scoped to the instance.
type Adapter struct {
	now    func() time.Time
	warner *Warner

	mu         sync.Mutex
	lastMillis int64
	fallbacks  uint64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLogger sets the logger behind the deduplicated warning log.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.warner = NewWarner(logger) }
}

// WithWarner shares an existing Warner.
func WithWarner(w *Warner) Option {
	return func(a *Adapter) { a.warner = w }
}

// New creates an Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.warner == nil {
		a.warner = NewWarner(nil)
	}
	return a
}

// Validate reports whether payload is a JSON object carrying a non-null
// aggregates or classification member. It is a shape check that tells an
// empty or garbage response apart from a usable partial one; it does not
// validate the members themselves.
func Validate(payload []byte) bool {
	fields, ok := decodeObject(payload)
	if !ok {
		return false
	}
	return present(fields, keyAggregates) || present(fields, keyClassification)
}

// Normalize converts payload into a snapshot. Missing required metrics
// default to 0, a missing runtime stays nil, and extended metrics appear
// only when reported. Normalize never fails; callers handling network
// input should call Validate first.
func (a *Adapter) Normalize(payload []byte) snapshot.Snapshot {
	fields, ok := decodeObject(payload)
	if !ok {
		a.warner.Warn("snapshot payload is not a JSON object")
		fields = map[string]json.RawMessage{}
	}

	snap := snapshot.Snapshot{
		Aggregates:       a.normalizeAggregates(fields),
		ClassifiedCounts: a.normalizeClassification(fields),
	}

	snap.ID = a.idField(fields)
	if snap.ID == "" {
		snap.ID = fmt.Sprintf("snapshot-%d", a.nextMillis())
	}
	snap.Timestamp = stringField(fields, keyTimestamp)
	if snap.Timestamp == "" {
		snap.Timestamp = snapshot.FormatTime(a.now())
	}
	return snap
}

// DefaultSnapshot returns a zeroed snapshot for when the upstream source is
// unavailable, so consumers can render an empty state without nil checks.
func (a *Adapter) DefaultSnapshot() snapshot.Snapshot {
	now := a.now()
	a.mu.Lock()
	a.fallbacks++
	seq := a.fallbacks
	a.mu.Unlock()

	return snapshot.Snapshot{
		ID:               fmt.Sprintf("fallback-%d%d", now.UnixMilli(), seq),
		Timestamp:        snapshot.FormatTime(now),
		Aggregates:       snapshot.ZeroMetrics(),
		ClassifiedCounts: snapshot.ClassifiedCounts{},
	}
}

// nextMillis returns the current epoch millis, bumped past the last value
// handed out so two ids minted in the same millisecond still differ.
func (a *Adapter) nextMillis() int64 {
	ms := a.now().UnixMilli()
	a.mu.Lock()
	defer a.mu.Unlock()
	if ms <= a.lastMillis {
		ms = a.lastMillis + 1
	}
	a.lastMillis = ms
	return ms
}

func (a *Adapter) normalizeAggregates(fields map[string]json.RawMessage) snapshot.AggregateMetrics {
	m := snapshot.ZeroMetrics()
	if !present(fields, keyAggregates) {
		return m
	}
	agg, ok := decodeObject(fields[keyAggregates])
	if !ok {
		a.warner.Warn("snapshot aggregates is not a JSON object")
		return m
	}

	required := []struct {
		key string
		dst *snapshot.Number
	}{
		{"totalDomains", &m.TotalDomains},
		{"successRate", &m.SuccessRate},
		{"dnsSuccessRate", &m.DNSSuccessRate},
		{"httpSuccessRate", &m.HTTPSuccessRate},
		{"avgLeadScore", &m.AvgLeadScore},
	}
	for _, f := range required {
		if n, ok := numberField(agg, f.key); ok {
			*f.dst = n
		}
	}

	optional := []struct {
		key string
		dst **snapshot.Number
	}{
		{"runtime", &m.Runtime},
		{"highPotentialCount", &m.HighPotentialCount},
		{"leadsCount", &m.LeadsCount},
		{"avgRichness", &m.AvgRichness},
		{"warningRate", &m.WarningRate},
		{"keywordCoverage", &m.KeywordCoverage},
		{"medianGain", &m.MedianGain},
	}
	for _, f := range optional {
		if n, ok := numberField(agg, f.key); ok {
			*f.dst = &n
		}
	}

	for _, f := range required {
		if present(agg, f.key) && !f.dst.IsNumeric() {
			a.warner.Warn("snapshot aggregate is not numeric", "field", f.key)
		}
	}
	return m
}

func (a *Adapter) normalizeClassification(fields map[string]json.RawMessage) snapshot.ClassifiedCounts {
	counts := snapshot.ClassifiedCounts{}
	if !present(fields, keyClassification) {
		return counts
	}
	buckets, ok := decodeObject(fields[keyClassification])
	if !ok {
		a.warner.Warn("snapshot classification is not a JSON object")
		return counts
	}
	for label, raw := range buckets {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			a.warner.Warn("snapshot classification count is not an integer", "bucket", label)
			continue
		}
		counts[label] = int(f)
	}
	return counts
}

// decodeObject decodes payload as a JSON object. Arrays, scalars, null and
// empty input are rejected.
func decodeObject(payload []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// present reports whether key exists and is not JSON null.
func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && len(raw) > 0 && string(raw) != "null"
}

func numberField(fields map[string]json.RawMessage, key string) (snapshot.Number, bool) {
	if !present(fields, key) {
		return snapshot.Number{}, false
	}
	var n snapshot.Number
	if err := n.UnmarshalJSON(fields[key]); err != nil {
		return snapshot.Number{}, false
	}
	return n, true
}

// idField reads the snapshot id. Numeric ids keep their token text; other
// non-string ids are dropped so Normalize mints one.
func (a *Adapter) idField(fields map[string]json.RawMessage) string {
	if !present(fields, keySnapshotID) {
		return ""
	}
	raw := fields[keySnapshotID]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	a.warner.Warn("snapshot id is not a string")
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func stringField(fields map[string]json.RawMessage, key string) string {
	if !present(fields, key) {
		return ""
	}
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		return ""
	}
	return s
}
