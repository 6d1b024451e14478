package mirror

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"github.com/blackwell-systems/campaigntrends/internal/history"
)

// KeyPrefix is prepended to the campaign id to form a blob key.
const KeyPrefix = "campaign-trends:"

// BlobVersion is the version written into every blob.
const BlobVersion = 1

// ErrCorrupt is returned by Load when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("corrupt mirror blob")

// blob is the serialized form of one campaign's mirrored history.
type blob struct {
	Entries []history.MirrorEntry `json:"entries"`
	Version int                   `json:"version"`
}

// Mirror stores snappy-compressed JSON blobs of reduced history entries,
// one row per campaign. It implements history.Mirror.
type Mirror struct {
	db  *DB
	now func() time.Time
}

// New returns a Mirror backed by db.
func New(db *DB) *Mirror {
	return &Mirror{db: db, now: time.Now}
}

// Key returns the blob key for a campaign.
func Key(campaignID string) string {
	return KeyPrefix + campaignID
}

// Save replaces the mirrored entries of a campaign.
func (m *Mirror) Save(campaignID string, entries []history.MirrorEntry) error {
	if entries == nil {
		entries = []history.MirrorEntry{}
	}
	raw, err := json.Marshal(blob{Entries: entries, Version: BlobVersion})
	if err != nil {
		return fmt.Errorf("encoding mirror blob: %w", err)
	}
	_, err = m.db.conn.Exec(
		`INSERT INTO mirror_blobs (key, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		Key(campaignID), snappy.Encode(nil, raw), m.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving mirror blob: %w", err)
	}
	return nil
}

// Load returns the mirrored entries of a campaign, or nil when none are
// stored. Undecodable blobs and unknown versions yield ErrCorrupt.
func (m *Mirror) Load(campaignID string) ([]history.MirrorEntry, error) {
	var compressed []byte
	err := m.db.conn.QueryRow("SELECT blob FROM mirror_blobs WHERE key = ?", Key(campaignID)).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading mirror blob: %w", err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if b.Version != BlobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, b.Version)
	}
	return b.Entries, nil
}

// Delete removes the mirrored entries of a campaign.
func (m *Mirror) Delete(campaignID string) error {
	if _, err := m.db.conn.Exec("DELETE FROM mirror_blobs WHERE key = ?", Key(campaignID)); err != nil {
		return fmt.Errorf("deleting mirror blob: %w", err)
	}
	return nil
}

// Campaigns returns the ids of every campaign with a stored blob.
func (m *Mirror) Campaigns() ([]string, error) {
	rows, err := m.db.conn.Query("SELECT key FROM mirror_blobs ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		ids = append(ids, key[len(KeyPrefix):])
	}
	return ids, rows.Err()
}
