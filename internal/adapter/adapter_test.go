package adapter

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestAdapter(buf *bytes.Buffer) *Adapter {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return New(WithClock(func() time.Time { return fixedNow }), WithLogger(logger))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"null", `null`, false},
		{"undefined", ``, false},
		{"string", `"x"`, false},
		{"array", `[]`, false},
		{"empty object", `{}`, false},
		{"unrelated object", `{"status":"ok"}`, false},
		{"null aggregates", `{"aggregates":null}`, false},
		{"not json", `{aggregates`, false},
		{"aggregates", `{"aggregates":{}}`, true},
		{"classification", `{"classification":{}}`, true},
		{"both", `{"aggregates":{"totalDomains":3},"classification":{"High Quality":1}}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Validate([]byte(tc.payload)))
		})
	}
}

func TestNormalize_EmptyPayloadUsesDefaults(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{}`))

	assert.Equal(t, snapshot.ZeroMetrics(), snap.Aggregates)
	assert.Nil(t, snap.Aggregates.Runtime)
	assert.Empty(t, snap.ClassifiedCounts)
	assert.NotNil(t, snap.ClassifiedCounts)
	assert.Regexp(t, regexp.MustCompile(`^snapshot-\d+$`), snap.ID)

	_, err := snap.Time()
	require.NoError(t, err)
}

func TestNormalize_KeepsReportedValues(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{
		"snapshotId": "srv-42",
		"timestamp": "2026-05-01T08:00:00Z",
		"aggregates": {
			"totalDomains": 150,
			"successRate": 88.5,
			"avgLeadScore": 45,
			"runtime": 12.25,
			"warningRate": 0
		},
		"classification": {"High Quality": 15, "Low Quality": 135}
	}`))

	assert.Equal(t, "srv-42", snap.ID)
	assert.Equal(t, "2026-05-01T08:00:00Z", snap.Timestamp)
	assert.Equal(t, 150.0, snap.Aggregates.TotalDomains.Float())
	assert.Equal(t, 88.5, snap.Aggregates.SuccessRate.Float())
	assert.Equal(t, 0.0, snap.Aggregates.DNSSuccessRate.Float())
	require.NotNil(t, snap.Aggregates.Runtime)
	assert.Equal(t, 12.25, snap.Aggregates.Runtime.Float())
	require.NotNil(t, snap.Aggregates.WarningRate)
	assert.Equal(t, 0.0, snap.Aggregates.WarningRate.Float())
	assert.Nil(t, snap.Aggregates.LeadsCount)
	assert.Equal(t, snapshot.ClassifiedCounts{"High Quality": 15, "Low Quality": 135}, snap.ClassifiedCounts)
}

func TestNormalize_PassesThroughNonNumericMetrics(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{"aggregates":{"totalDomains":"150"}}`))

	assert.False(t, snap.Aggregates.TotalDomains.IsNumeric())
	assert.Equal(t, `"150"`, string(snap.Aggregates.TotalDomains.Raw()))
	assert.Contains(t, buf.String(), "snapshot aggregate is not numeric")
}

func TestNormalize_NullMetricFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{"aggregates":{"avgLeadScore":null,"runtime":null}}`))
	assert.Equal(t, 0.0, snap.Aggregates.AvgLeadScore.Float())
	assert.Nil(t, snap.Aggregates.Runtime)
}

func TestNormalize_SkipsNonIntegerCounts(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{"classification":{"High Quality":4,"Medium":"x","Low":2.5,"Spam":3.0}}`))
	assert.Equal(t, snapshot.ClassifiedCounts{"High Quality": 4, "Spam": 3}, snap.ClassifiedCounts)
}

func TestNormalize_RejectsOversizedCounts(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	snap := a.Normalize([]byte(`{"classification":{"High Quality":1e300,"Other":-1e19,"Low":7}}`))
	assert.Equal(t, snapshot.ClassifiedCounts{"Low": 7}, snap.ClassifiedCounts)
	assert.Contains(t, buf.String(), "not an integer")
}

func TestNormalize_NonStringID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"number", `{"snapshotId":42}`, "42"},
		{"decimal", `{"snapshotId":4.50}`, "4.50"},
		{"object", `{"snapshotId":{"a":1}}`, ""},
		{"bool", `{"snapshotId":true}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			a := newTestAdapter(&buf)

			snap := a.Normalize([]byte(tt.payload))
			if tt.want != "" {
				assert.Equal(t, tt.want, snap.ID)
			} else {
				assert.True(t, strings.HasPrefix(snap.ID, "snapshot-"), snap.ID)
			}
			assert.Contains(t, buf.String(), "snapshot id is not a string")
		})
	}
}

func TestNormalize_NeverPanicsOnGarbage(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	for _, payload := range []string{``, `null`, `[]`, `"x"`, `{"aggregates":[1,2]}`, `{"classification":7}`} {
		snap := a.Normalize([]byte(payload))
		assert.Equal(t, snapshot.ZeroMetrics(), snap.Aggregates, payload)
		assert.NotEmpty(t, snap.ID, payload)
	}
}

func TestNormalize_SynthesizedIDsAreUnique(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id := a.Normalize([]byte(`{"aggregates":{}}`)).ID
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestDefaultSnapshot(t *testing.T) {
	var buf bytes.Buffer
	a := newTestAdapter(&buf)

	first := a.DefaultSnapshot()
	second := a.DefaultSnapshot()

	assert.Equal(t, "fallback-17778888000001", first.ID)
	assert.Equal(t, "fallback-17778888000002", second.ID)
	assert.Equal(t, "2026-05-04T10:00:00.000Z", first.Timestamp)
	assert.Equal(t, snapshot.ZeroMetrics(), first.Aggregates)
	assert.Empty(t, first.ClassifiedCounts)
}

func TestWarner_LogsEachMessageOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewWarner(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.True(t, w.Warn("timeline unavailable", "campaign", "c1"))
	assert.False(t, w.Warn("timeline unavailable", "campaign", "c2"))
	assert.True(t, w.Warn("mirror corrupt"))
	assert.Equal(t, 2, strings.Count(buf.String(), "level=WARN"))

	w.Reset()
	assert.True(t, w.Warn("timeline unavailable"))
}

func TestAdapters_DoNotShareWarnings(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	a1 := newTestAdapter(&buf1)
	a2 := newTestAdapter(&buf2)

	a1.Normalize([]byte(`[]`))
	a2.Normalize([]byte(`[]`))

	assert.Contains(t, buf1.String(), "not a JSON object")
	assert.Contains(t, buf2.String(), "not a JSON object")
}
