package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/blackwell-systems/campaigntrends/internal/recommend"
	"github.com/blackwell-systems/campaigntrends/internal/snapshot"
)

// CampaignsResult lists campaigns with in-memory history.
type CampaignsResult struct {
	Campaigns []string `json:"campaigns"`
}

// SnapshotsResult holds one campaign's snapshots.
type SnapshotsResult struct {
	CampaignID string              `json:"campaign_id"`
	Snapshots  []snapshot.Snapshot `json:"snapshots"`
	Integrated int                 `json:"integrated,omitempty"`
}

// RecommendationsResult holds the findings for a campaign's latest snapshot.
type RecommendationsResult struct {
	CampaignID      string                     `json:"campaign_id"`
	SnapshotID      string                     `json:"snapshot_id"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

type toolArgs struct {
	CampaignID string `json:"campaign_id"`
	Cursor     string `json:"cursor"`
	Limit      int    `json:"limit"`
}

var errNoCampaignID = errors.New("campaign_id is required")

func inputSchema(properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

var campaignProp = map[string]any{"type": "string", "description": "Campaign id"}

// Register adds every campaign tool to srv.
func (s *Server) Register(srv *mcp.Server) {
	s.addTool(srv, &mcp.Tool{
		Name:        "list_campaigns",
		Description: "Campaigns that currently have snapshot history.",
		InputSchema: inputSchema(map[string]any{}),
	}, s.listCampaigns)

	s.addTool(srv, &mcp.Tool{
		Name:        "get_snapshots",
		Description: "Local snapshot history of a campaign, oldest first.",
		InputSchema: inputSchema(map[string]any{"campaign_id": campaignProp}),
	}, s.getSnapshots)

	s.addTool(srv, &mcp.Tool{
		Name:        "get_timeline",
		Description: "Campaign timeline merged from local history and the server, sorted by timestamp.",
		InputSchema: inputSchema(map[string]any{
			"campaign_id": campaignProp,
			"cursor":      map[string]any{"type": "string", "description": "Server pagination cursor"},
			"limit":       map[string]any{"type": "integer", "description": "Server page size (default 50)"},
		}),
	}, s.getTimeline)

	s.addTool(srv, &mcp.Tool{
		Name:        "get_recommendations",
		Description: "Recommendations for the latest snapshot of a campaign.",
		InputSchema: inputSchema(map[string]any{"campaign_id": campaignProp}),
	}, s.getRecommendations)

	s.addTool(srv, &mcp.Tool{
		Name:        "get_memory_stats",
		Description: "Campaign count, snapshot count and estimated size of the history.",
		InputSchema: inputSchema(map[string]any{}),
	}, s.getMemoryStats)
}

func (s *Server) listCampaigns(_ context.Context, _ toolArgs) (any, error) {
	return CampaignsResult{Campaigns: s.store.Campaigns()}, nil
}

func (s *Server) getSnapshots(_ context.Context, args toolArgs) (any, error) {
	if args.CampaignID == "" {
		return nil, errNoCampaignID
	}
	return SnapshotsResult{
		CampaignID: args.CampaignID,
		Snapshots:  nonNil(s.store.Snapshots(args.CampaignID)),
	}, nil
}

func (s *Server) getTimeline(ctx context.Context, args toolArgs) (any, error) {
	if args.CampaignID == "" {
		return nil, errNoCampaignID
	}
	limit := s.limit
	if args.Limit > 0 {
		limit = args.Limit
	}
	merged, n := s.timeline.Reconcile(ctx, s.store, args.CampaignID, args.Cursor, limit)
	return SnapshotsResult{CampaignID: args.CampaignID, Snapshots: nonNil(merged), Integrated: n}, nil
}

func (s *Server) getRecommendations(_ context.Context, args toolArgs) (any, error) {
	if args.CampaignID == "" {
		return nil, errNoCampaignID
	}
	snap, ok := s.store.Latest(args.CampaignID)
	if !ok {
		snap = s.adapter.DefaultSnapshot()
	}
	return RecommendationsResult{
		CampaignID:      args.CampaignID,
		SnapshotID:      snap.ID,
		Recommendations: recommend.GetRecommendations(recommend.InputFromSnapshot(snap)),
	}, nil
}

func (s *Server) getMemoryStats(_ context.Context, _ toolArgs) (any, error) {
	return s.store.MemoryStats(), nil
}

func nonNil(snaps []snapshot.Snapshot) []snapshot.Snapshot {
	if snaps == nil {
		return []snapshot.Snapshot{}
	}
	return snaps
}
