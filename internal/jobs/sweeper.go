package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// Cleaner removes finished sessions
type Cleaner interface {
	Cleanup() int
}

// Sweeper runs Cleanup on a cron schedule, then any follow-up hooks
type Sweeper struct {
	cron    *cron.Cron
	cleaner Cleaner
	after   []func()
}

// NewSweeper schedules cleaner.Cleanup. schedule accepts standard cron
// expressions and descriptors such as "@every 1m".
func NewSweeper(schedule string, cleaner Cleaner, after ...func()) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		cleaner: cleaner,
		after:   after,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one cleanup pass
func (s *Sweeper) Sweep() {
	if removed := s.cleaner.Cleanup(); removed > 0 {
		debug.Debug("Sweep removed %d sessions", removed)
	}
	for _, fn := range s.after {
		fn()
	}
}

// Start begins running the schedule in the background
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running
// sweep has finished
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
