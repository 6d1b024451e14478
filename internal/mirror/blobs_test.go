package mirror

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

func openTestMirror(t *testing.T) (*Mirror, *DB) {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func TestMirror_RoundTrip(t *testing.T) {
	m, _ := openTestMirror(t)

	entries := []history.MirrorEntry{
		{ID: "a", Timestamp: "2026-02-01T00:00:00Z", IngestedAt: 1000, TotalDomains: snapshot.Int(10), AvgLeadScore: snapshot.Num(3.5), SuccessRate: snapshot.Num(90)},
		{ID: "b", Timestamp: "2026-02-01T00:01:00Z", IngestedAt: 2000, Pinned: true},
	}
	require.NoError(t, m.Save("c1", entries))

	got, err := m.Load("c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, int64(1000), got[0].IngestedAt)
	assert.Equal(t, 3.5, got[0].AvgLeadScore.Float())
	assert.True(t, got[1].Pinned)
}

func TestMirror_SaveReplaces(t *testing.T) {
	m, _ := openTestMirror(t)

	require.NoError(t, m.Save("c1", []history.MirrorEntry{{ID: "a"}}))
	require.NoError(t, m.Save("c1", []history.MirrorEntry{{ID: "b"}}))

	got, err := m.Load("c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestMirror_LoadMissing(t *testing.T) {
	m, _ := openTestMirror(t)
	got, err := m.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMirror_Delete(t *testing.T) {
	m, _ := openTestMirror(t)
	require.NoError(t, m.Save("c1", []history.MirrorEntry{{ID: "a"}}))
	require.NoError(t, m.Save("c2", []history.MirrorEntry{{ID: "b"}}))
	require.NoError(t, m.Delete("c1"))

	got, err := m.Load("c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	ids, err := m.Campaigns()
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, ids)
}

func TestMirror_CorruptBlobs(t *testing.T) {
	m, db := openTestMirror(t)
	now := time.Now().UTC().Format(time.RFC3339)

	insert := func(id string, data []byte) {
		_, err := db.Conn().Exec("INSERT INTO mirror_blobs (key, blob, updated_at) VALUES (?, ?, ?)", Key(id), data, now)
		require.NoError(t, err)
	}
	insert("not-snappy", []byte("plain text"))
	insert("not-json", snappy.Encode(nil, []byte("{")))
	insert("old-version", snappy.Encode(nil, []byte(`{"entries":[],"version":7}`)))

	for _, id := range []string{"not-snappy", "not-json", "old-version"} {
		_, err := m.Load(id)
		assert.True(t, errors.Is(err, ErrCorrupt), "%s: %v", id, err)
	}
}

func TestMirror_BlobIsCompressedJSON(t *testing.T) {
	m, db := openTestMirror(t)
	require.NoError(t, m.Save("c1", nil))

	var compressed []byte
	require.NoError(t, db.Conn().QueryRow("SELECT blob FROM mirror_blobs WHERE key = ?", "campaign-trends:c1").Scan(&compressed))
	raw, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":[],"version":1}`, string(raw))
}

func TestMirror_WithStore(t *testing.T) {
	m, _ := openTestMirror(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	first := history.New(history.WithMirror(m), history.WithClock(clock))
	s := snapshot.Snapshot{ID: "s1", Timestamp: "2026-02-01T00:00:00Z", Aggregates: snapshot.ZeroMetrics()}
	s.Aggregates.TotalDomains = snapshot.Int(42)
	first.AddSnapshot("c1", s, true)
	require.NoError(t, first.Close())

	second := history.New(history.WithMirror(m), history.WithClock(clock))
	got := second.Snapshots("c1")
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, 42.0, got[0].Aggregates.TotalDomains.Float())
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirror.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	assert.FileExists(t, path)
}
