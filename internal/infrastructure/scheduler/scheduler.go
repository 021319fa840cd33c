package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers backup runs in resident mode, for hosts without a
// system scheduler.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
	}
}

func (s *Scheduler) Schedule(spec string, run func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = run(context.Background())
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
