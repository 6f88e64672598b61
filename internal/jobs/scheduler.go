package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work
type Job interface {
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on cron schedules in UTC
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Register adds a job under a standard five-field cron expression.
func (s *Scheduler) Register(name, cronExpression string, job Job) error {
	// Validate cron expression
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(cronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpression, err)
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpression, false),
		gocron.NewTask(func() {
			if err := job.Run(s.ctx); err != nil {
				log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
			}
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	log.Printf("📅 [SCHEDULER] Registered job '%s' (cron: %s)", name, cronExpression)
	return nil
}

// Start begins running registered jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Println("⏰ [SCHEDULER] Started")
}

// Stop cancels running jobs and shuts the scheduler down
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	log.Println("✅ [SCHEDULER] Stopped")
	return nil
}
