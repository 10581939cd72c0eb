package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"feedwire/internal/pagination"
	"feedwire/pkg/feedwire"
)

// Publisher is the write trigger the publishing workflow calls after a post
// is durably created. The fanout coordinator satisfies it.
type Publisher interface {
	OnPublish(ctx context.Context, post feedwire.Post) error
}

// Option mutates service configuration.
type Option func(*Service)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) {
		if logger != nil {
			service.logger = logger
		}
	}
}

// WithCacheLimit sets the list cache cap the blending rule reasons about.
// Must match the cap the list cache itself was built with.
func WithCacheLimit(limit int) Option {
	return func(service *Service) {
		if limit > 0 {
			service.cacheLimit = limit
		}
	}
}

// Service serves feed reads and forwards publish triggers.
type Service struct {
	logger     *slog.Logger
	cache      feedwire.ListCache
	store      feedwire.EntryStore
	publisher  Publisher
	cacheLimit int

	// repopulate collapses concurrent cold-miss loads per owner into one
	// durable query.
	repopulate singleflight.Group
}

// New creates a feed service.
func New(cache feedwire.ListCache, store feedwire.EntryStore, publisher Publisher, options ...Option) *Service {
	service := &Service{
		logger:     slog.Default(),
		cache:      cache,
		store:      store,
		publisher:  publisher,
		cacheLimit: 500,
	}
	for _, option := range options {
		option(service)
	}

	return service
}

// OnPublish forwards a freshly published post to the fanout coordinator.
func (s *Service) OnPublish(ctx context.Context, post feedwire.Post) error {
	if err := s.publisher.OnPublish(ctx, post); err != nil {
		return fmt.Errorf("feed publish: %w", err)
	}

	return nil
}

// ListFeed returns one page of an owner's feed.
//
// The cached window answers the query alone while it is trustworthy: always
// for cursor-after refreshes, and otherwise while the window itself proves
// more data exists (HasNextPage) or is shorter than the cap (the owner's
// whole feed fits). Once the window is saturated and the page would end at
// its edge, the durable store serves the page instead, so a reader never
// sees a false "no next page" at the cache boundary.
func (s *Service) ListFeed(ctx context.Context, ownerID int64, req pagination.Request) (feedwire.Page, error) {
	if err := req.Validate(); err != nil {
		return feedwire.Page{}, fmt.Errorf("list feed for owner %d: %w", ownerID, err)
	}

	window, usable := s.cachedWindow(ctx, ownerID)
	if usable {
		page, err := pagination.Paginate(window, req)
		if err != nil {
			return feedwire.Page{}, fmt.Errorf("list feed for owner %d: %w", ownerID, err)
		}
		if req.After != nil || page.HasNextPage || len(window) < s.cacheLimit {
			return page, nil
		}
	}

	page, err := pagination.FromSource(ctx, s.store, ownerID, req)
	if err != nil {
		return feedwire.Page{}, fmt.Errorf("list feed for owner %d: %w", ownerID, err)
	}

	return page, nil
}

// cachedWindow returns the owner's cached window, repopulating it from the
// durable store on a cold miss. Any cache failure degrades to the durable
// path: the cache is a performance optimization, not a correctness store.
func (s *Service) cachedWindow(ctx context.Context, ownerID int64) ([]feedwire.FeedEntry, bool) {
	window, present, err := s.cache.Get(ctx, ownerID)
	if err != nil {
		s.logger.Warn("list cache get failed, serving from durable store",
			"owner_id", ownerID,
			"error", err,
		)
		return nil, false
	}
	if present {
		return window, true
	}

	loaded, err, _ := s.repopulate.Do(strconv.FormatInt(ownerID, 10), func() (interface{}, error) {
		newest, err := s.store.NewestEntries(ctx, ownerID, s.cacheLimit)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Populate(ctx, ownerID, newest); err != nil {
			s.logger.Warn("list cache populate failed, window stays cold",
				"owner_id", ownerID,
				"error", err,
			)
		}
		return newest, nil
	})
	if err != nil {
		s.logger.Warn("cold window load failed, serving from durable store",
			"owner_id", ownerID,
			"error", err,
		)
		return nil, false
	}

	return loaded.([]feedwire.FeedEntry), true
}

var _ Publisher = (*Service)(nil)
