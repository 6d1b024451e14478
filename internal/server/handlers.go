package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blackwell-systems/campaigntrends/internal/adapter"
	"github.com/blackwell-systems/campaigntrends/internal/history"
	"github.com/blackwell-systems/campaigntrends/internal/recommend"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

type snapshotsResponse struct {
	CampaignID string              `json:"campaignId"`
	Snapshots  []snapshot.Snapshot `json:"snapshots"`
}

type timelineResponse struct {
	CampaignID string              `json:"campaignId"`
	Snapshots  []snapshot.Snapshot `json:"snapshots"`
	Integrated int                 `json:"integrated"`
}

type recommendationsResponse struct {
	CampaignID      string                     `json:"campaignId"`
	SnapshotID      string                     `json:"snapshotId"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

type statsResponse struct {
	history.MemoryStats
	Campaigns []string `json:"campaigns"`
}

type capacityRequest struct {
	MaxSnapshots *int `json:"maxSnapshots"`
}

type ttlRequest struct {
	TTL string `json:"ttl"`
}

func (s *Server) handleAddSnapshot(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "reading payload failed")
		return
	}
	if !adapter.Validate(body) {
		writeError(w, http.StatusBadRequest, "payload has neither aggregates nor classification")
		return
	}

	pinned := false
	if v := r.URL.Query().Get("pinned"); v != "" {
		if pinned, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "pinned must be a boolean")
			return
		}
	}

	snap := s.adapter.Normalize(body)
	s.store.AddSnapshot(campaignID, snap, pinned)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	writeJSON(w, http.StatusOK, snapshotsResponse{
		CampaignID: campaignID,
		Snapshots:  nonNil(s.store.Snapshots(campaignID)),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Latest(chi.URLParam(r, "campaignID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshots")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.ClearHistory(chi.URLParam(r, "campaignID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	s.setPinned(w, r, true)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	s.setPinned(w, r, false)
}

func (s *Server) setPinned(w http.ResponseWriter, r *http.Request, pinned bool) {
	campaignID := chi.URLParam(r, "campaignID")
	snapshotID := chi.URLParam(r, "snapshotID")

	var found bool
	if pinned {
		found = s.store.PinSnapshot(campaignID, snapshotID)
	} else {
		found = s.store.UnpinSnapshot(campaignID, snapshotID)
	}
	if !found {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := decodeBody(w, r, &req); err != nil || req.MaxSnapshots == nil {
		writeError(w, http.StatusBadRequest, `body must be {"maxSnapshots": <int>}`)
		return
	}
	s.store.SetMaxSnapshots(chi.URLParam(r, "campaignID"), *req.MaxSnapshots)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTTL(w http.ResponseWriter, r *http.Request) {
	var req ttlRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, `body must be {"ttl": "<duration>"}`)
		return
	}
	ttl, err := time.ParseDuration(req.TTL)
	if err != nil || ttl <= 0 {
		writeError(w, http.StatusBadRequest, "ttl must be a positive duration such as 12h")
		return
	}
	s.store.SetTTL(chi.URLParam(r, "campaignID"), ttl)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	limit := s.limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	merged, integrated := s.timeline.Reconcile(r.Context(), s.store, campaignID, r.URL.Query().Get("cursor"), limit)
	writeJSON(w, http.StatusOK, timelineResponse{
		CampaignID: campaignID,
		Snapshots:  merged,
		Integrated: integrated,
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	snap, ok := s.store.Latest(campaignID)
	if !ok {
		snap = s.adapter.DefaultSnapshot()
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		CampaignID:      campaignID,
		SnapshotID:      snap.ID,
		Recommendations: recommend.GetRecommendations(recommend.InputFromSnapshot(snap)),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	campaigns := s.store.Campaigns()
	if campaigns == nil {
		campaigns = []string{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		MemoryStats: s.store.MemoryStats(),
		Campaigns:   campaigns,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nonNil(snaps []snapshot.Snapshot) []snapshot.Snapshot {
	if snaps == nil {
		return []snapshot.Snapshot{}
	}
	return snaps
}
