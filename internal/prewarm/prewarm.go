// Package prewarm periodically rebuilds the configured club's aggregate so
// API reads are served from memory instead of live scrapes.
package prewarm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/club"
	"github.com/Zetabytes/fussball-de-api/internal/crawler"
	"github.com/Zetabytes/fussball-de-api/internal/metrics"
)

// Builder produces the aggregate one cycle publishes.
type Builder interface {
	BuildFullClubInfo(ctx context.Context, clubID string) (*crawler.FullClubInfo, error)
}

// Scheduler runs prewarm cycles at a fixed interval until its context is
// canceled.
type Scheduler struct {
	builder  Builder
	store    *club.Store
	clubID   string
	interval time.Duration
	log      *zap.Logger
}

// New constructs a Scheduler for one club.
func New(builder Builder, store *club.Store, clubID string, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		builder:  builder,
		store:    store,
		clubID:   clubID,
		interval: interval,
		log:      logger,
	}
}

// Run executes cycles until ctx is canceled. The first cycle starts
// immediately so a fresh process serves warm data as soon as possible.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("prewarm scheduler started",
		zap.String("club_id", s.clubID),
		zap.Duration("interval", s.interval))
	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("prewarm scheduler stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

// cycle builds and publishes one aggregate. Failures and empty results leave
// the previously published aggregate in place, and a panicking scrape never
// takes the scheduler down.
func (s *Scheduler) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObservePrewarmCycle("panic")
			s.log.Error("prewarm cycle panicked", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	info, err := s.builder.BuildFullClubInfo(ctx, s.clubID)
	if err != nil {
		metrics.ObservePrewarmCycle("failed")
		s.log.Warn("prewarm cycle failed",
			zap.String("club_id", s.clubID), zap.Error(err))
		return
	}
	if len(info.Teams) == 0 {
		metrics.ObservePrewarmCycle("empty")
		s.log.Warn("prewarm cycle found no teams, keeping previous aggregate",
			zap.String("club_id", s.clubID))
		return
	}

	s.store.Replace(s.clubID, info)
	metrics.ObservePrewarmCycle("ok")
	s.log.Info("prewarm cycle complete",
		zap.String("club_id", s.clubID),
		zap.Int("teams", len(info.Teams)),
		zap.Duration("took", time.Since(start)))
}
