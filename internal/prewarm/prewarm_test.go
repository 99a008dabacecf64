package prewarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zetabytes/fussball-de-api/internal/club"
	"github.com/Zetabytes/fussball-de-api/internal/crawler"
)

type fakeBuilder struct {
	info  *crawler.FullClubInfo
	err   error
	calls int
}

func (f *fakeBuilder) BuildFullClubInfo(_ context.Context, _ string) (*crawler.FullClubInfo, error) {
	f.calls++
	return f.info, f.err
}

func TestCyclePublishesAggregate(t *testing.T) {
	builder := &fakeBuilder{info: &crawler.FullClubInfo{
		Teams: []crawler.TeamWithDetails{{Team: crawler.Team{ID: "T1"}}},
	}}
	store := club.NewStore()
	s := New(builder, store, "CLUB1", time.Minute, nil)

	s.cycle(context.Background())

	info, ok := store.Get("CLUB1")
	require.True(t, ok)
	assert.Len(t, info.Teams, 1)
}

func TestCycleKeepsPreviousAggregateOnFailure(t *testing.T) {
	store := club.NewStore()
	previous := &crawler.FullClubInfo{
		Teams: []crawler.TeamWithDetails{{Team: crawler.Team{ID: "T1"}}},
	}
	store.Replace("CLUB1", previous)

	builder := &fakeBuilder{err: errors.New("site down")}
	s := New(builder, store, "CLUB1", time.Minute, nil)
	s.cycle(context.Background())

	info, ok := store.Get("CLUB1")
	require.True(t, ok)
	assert.Equal(t, previous, info)
}

func TestCycleSkipsEmptyResult(t *testing.T) {
	store := club.NewStore()
	previous := &crawler.FullClubInfo{
		Teams: []crawler.TeamWithDetails{{Team: crawler.Team{ID: "T1"}}},
	}
	store.Replace("CLUB1", previous)

	builder := &fakeBuilder{info: &crawler.FullClubInfo{Teams: []crawler.TeamWithDetails{}}}
	s := New(builder, store, "CLUB1", time.Minute, nil)
	s.cycle(context.Background())

	info, ok := store.Get("CLUB1")
	require.True(t, ok)
	assert.Equal(t, previous, info, "an empty scrape must not clobber warm data")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	builder := &fakeBuilder{info: &crawler.FullClubInfo{
		Teams: []crawler.TeamWithDetails{{Team: crawler.Team{ID: "T1"}}},
	}}
	store := club.NewStore()
	s := New(builder, store, "CLUB1", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
	assert.Equal(t, 1, builder.calls, "the first cycle runs immediately")
}
