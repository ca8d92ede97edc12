package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily maintenance jobs: the thread retention sweep
// and the usage report.
type Scheduler struct {
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	maintenance func(ctx context.Context) error
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetMaintenanceFunc sets the job executed on the daily schedule.
func (s *Scheduler) SetMaintenanceFunc(f func(ctx context.Context) error) {
	s.maintenance = f
}

// Start schedules the maintenance job daily at 03:00 UTC.
func (s *Scheduler) Start() error {
	if s.maintenance == nil {
		log.Println("maintenance function not set, scheduler will not run")
		return nil
	}

	_, err := s.cron.AddFunc("0 3 * * *", func() {
		log.Println("🕒 Running daily maintenance")
		if err := s.maintenance(s.ctx); err != nil {
			log.Printf("daily maintenance failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Println("📅 Scheduler started - daily maintenance at 03:00 UTC")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
