package services

import (
	"context"
	"strings"
	"time"

	"github.com/gramlytics/gramlytics-backend/internal/clients/provider"
	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/normalize"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
	"github.com/gramlytics/gramlytics-backend/internal/types"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

// emptyResultID marks a provider round that found nothing. The marker row
// keeps the TTL window applying to empty results, so a query with zero hits
// does not spend a provider call on every lookup.
const emptyResultID = "__none__"

// SearchService fronts provider search with a persistent TTL cache so a
// repeated (kind, query) within the window never spends a provider call.
type SearchService interface {
	// GetOrFetch returns cached hits when fresh, otherwise calls the
	// provider and stores the snapshot. The bool reports a cache hit.
	GetOrFetch(ctx context.Context, kind, query string) ([]*types.SearchResult, bool, error)
}

type searchService struct {
	log    *logger.Logger
	client provider.Client
	repo   repos.SearchResultRepo
	usage  UsageTracker
	ttl    time.Duration

	nowFn func() time.Time
}

// NewSearchService reads SEARCH_CACHE_TTL_SECONDS (default 900).
func NewSearchService(client provider.Client, repo repos.SearchResultRepo, usage UsageTracker, baseLog *logger.Logger) SearchService {
	ttlSec := utils.GetEnvAsInt("SEARCH_CACHE_TTL_SECONDS", 900, baseLog)
	return &searchService{
		log:    baseLog.With("service", "SearchService"),
		client: client,
		repo:   repo,
		usage:  usage,
		ttl:    time.Duration(ttlSec) * time.Second,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *searchService) GetOrFetch(ctx context.Context, kind, query string) ([]*types.SearchResult, bool, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	query = strings.ToLower(strings.TrimSpace(query))
	if !types.ValidSearchKind(kind) || query == "" {
		return nil, false, apperrors.ErrInvalidArgument
	}

	now := s.nowFn()
	cached, err := s.repo.GetFresh(ctx, nil, kind, query, now.Add(-s.ttl))
	if err != nil {
		return nil, false, err
	}
	if len(cached) > 0 {
		return dropEmptyMarkers(cached), true, nil
	}

	if err := s.usage.CheckBudget(ctx); err != nil {
		return nil, false, err
	}

	payload, err := s.client.Search(ctx, kind, query)
	if err != nil {
		return nil, false, err
	}

	recs, skipped := normalize.SearchResults(payload, kind, query)
	if len(skipped) > 0 {
		s.log.Warn("search payload items skipped", "kind", kind, "query", query, "skipped", len(skipped))
	}
	if len(recs) == 0 {
		recs = append(recs, &types.SearchResult{Kind: kind, Query: query, ResultID: emptyResultID})
	}
	for _, rec := range recs {
		rec.FetchedAt = now
	}

	if _, err := s.repo.UpsertBatch(ctx, nil, recs); err != nil {
		return nil, false, err
	}
	return dropEmptyMarkers(recs), false, nil
}

func dropEmptyMarkers(rows []*types.SearchResult) []*types.SearchResult {
	kept := make([]*types.SearchResult, 0, len(rows))
	for _, row := range rows {
		if row.ResultID == emptyResultID {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
