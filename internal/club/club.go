// Package club assembles crawler results into club- and team-level
// aggregates and keeps the prewarmed aggregate for serving.
package club

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Zetabytes/fussball-de-api/internal/crawler"
	"github.com/Zetabytes/fussball-de-api/internal/metrics"
)

// Source is the crawler surface the aggregate builder consumes.
type Source interface {
	ClubTeams(ctx context.Context, clubID string) ([]crawler.Team, error)
	ClubNextGames(ctx context.Context, clubID string) ([]crawler.Game, error)
	ClubPrevGames(ctx context.Context, clubID string) ([]crawler.Game, error)
	TeamNextGames(ctx context.Context, teamID string) ([]crawler.Game, error)
	TeamPrevGames(ctx context.Context, teamID string) ([]crawler.Game, error)
	TeamTable(ctx context.Context, teamID string) (*crawler.Table, error)
}

// maxConcurrentFetches bounds the fan-out against the upstream site.
const maxConcurrentFetches = 5

// Service builds aggregates by fanning page fetches out over a bounded pool.
type Service struct {
	src Source
	sem *semaphore.Weighted
	log *zap.Logger
}

// NewService constructs an aggregate builder. The concurrency bound is shared
// across all builds in flight.
func NewService(src Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		src: src,
		sem: semaphore.NewWeighted(maxConcurrentFetches),
		log: logger,
	}
}

// run executes fn under the concurrency bound, logging failures instead of
// propagating them. A single failed page costs one slot of the aggregate,
// never the whole build.
func (s *Service) run(ctx context.Context, wg *sync.WaitGroup, name string, fn func() error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		if err := fn(); err != nil {
			metrics.ObservePrewarmTaskFailure()
			s.log.Warn("aggregate task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// BuildFullClubInfo assembles the complete aggregate for one club: the club
// fixture windows plus table and fixtures for every team. Only the team list
// fetch is fatal; everything else degrades to empty slots.
func (s *Service) BuildFullClubInfo(ctx context.Context, clubID string) (*crawler.FullClubInfo, error) {
	teams, err := s.src.ClubTeams(ctx, clubID)
	if err != nil {
		return nil, err
	}

	info := &crawler.FullClubInfo{
		ClubPrevGames: []crawler.Game{},
		ClubNextGames: []crawler.Game{},
		Teams:         make([]crawler.TeamWithDetails, len(teams)),
	}
	for i, t := range teams {
		info.Teams[i] = crawler.TeamWithDetails{
			Team:      t,
			PrevGames: []crawler.Game{},
			NextGames: []crawler.Game{},
		}
	}

	var wg sync.WaitGroup
	s.run(ctx, &wg, "club_prev_games", func() error {
		games, err := s.src.ClubPrevGames(ctx, clubID)
		if err != nil {
			return err
		}
		info.ClubPrevGames = games
		return nil
	})
	s.run(ctx, &wg, "club_next_games", func() error {
		games, err := s.src.ClubNextGames(ctx, clubID)
		if err != nil {
			return err
		}
		info.ClubNextGames = games
		return nil
	})
	for i := range info.Teams {
		team := &info.Teams[i]
		teamID := team.ID
		s.run(ctx, &wg, "team_table", func() error {
			table, err := s.src.TeamTable(ctx, teamID)
			if err != nil {
				return err
			}
			team.Table = table
			return nil
		})
		s.run(ctx, &wg, "team_prev_games", func() error {
			games, err := s.src.TeamPrevGames(ctx, teamID)
			if err != nil {
				return err
			}
			team.PrevGames = games
			return nil
		})
		s.run(ctx, &wg, "team_next_games", func() error {
			games, err := s.src.TeamNextGames(ctx, teamID)
			if err != nil {
				return err
			}
			team.NextGames = games
			return nil
		})
	}
	wg.Wait()

	return info, nil
}

// BuildClubInfo assembles the club-level slice: team list plus club fixture
// windows.
func (s *Service) BuildClubInfo(ctx context.Context, clubID string) (*crawler.ClubInfo, error) {
	teams, err := s.src.ClubTeams(ctx, clubID)
	if err != nil {
		return nil, err
	}
	info := &crawler.ClubInfo{
		Teams:     teams,
		PrevGames: []crawler.Game{},
		NextGames: []crawler.Game{},
	}

	var wg sync.WaitGroup
	s.run(ctx, &wg, "club_prev_games", func() error {
		games, err := s.src.ClubPrevGames(ctx, clubID)
		if err != nil {
			return err
		}
		info.PrevGames = games
		return nil
	})
	s.run(ctx, &wg, "club_next_games", func() error {
		games, err := s.src.ClubNextGames(ctx, clubID)
		if err != nil {
			return err
		}
		info.NextGames = games
		return nil
	})
	wg.Wait()

	return info, nil
}

// BuildTeamInfo assembles one team's table and fixture windows.
func (s *Service) BuildTeamInfo(ctx context.Context, teamID string) (*crawler.TeamInfo, error) {
	info := &crawler.TeamInfo{
		PrevGames: []crawler.Game{},
		NextGames: []crawler.Game{},
	}

	var wg sync.WaitGroup
	s.run(ctx, &wg, "team_table", func() error {
		table, err := s.src.TeamTable(ctx, teamID)
		if err != nil {
			return err
		}
		info.Table = table
		return nil
	})
	s.run(ctx, &wg, "team_prev_games", func() error {
		games, err := s.src.TeamPrevGames(ctx, teamID)
		if err != nil {
			return err
		}
		info.PrevGames = games
		return nil
	})
	s.run(ctx, &wg, "team_next_games", func() error {
		games, err := s.src.TeamNextGames(ctx, teamID)
		if err != nil {
			return err
		}
		info.NextGames = games
		return nil
	})
	wg.Wait()

	return info, nil
}
