// Package scheduler wraps gocron v2 with clock-aligned scheduling. An
// interval may be a duration ("15m", aligned to wall-clock boundaries)
// or a cron expression (5 or 6 fields).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Scheduler runs a single recurring job.
type Scheduler struct {
	inner          gocron.Scheduler
	job            gocron.Job
	interval       string
	timezone       *time.Location
	runImmediately bool
	logger         *slog.Logger
}

// Config holds scheduler configuration
type Config struct {
	Interval       string         // Duration (e.g., "15m") or cron expression (e.g., "*/15 * * * *")
	Timezone       *time.Location // Timezone for cron expressions (default: UTC)
	RunImmediately bool           // Execute immediately on start
	Logger         *slog.Logger
}

// cronPattern matches cron expressions (5 or 6 fields)
var cronPattern = regexp.MustCompile(`^(\S+\s+){4,5}\S+$`)

// New creates a scheduler with one job attached.
func New(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		interval:       cfg.Interval,
		timezone:       cfg.Timezone,
		runImmediately: cfg.RunImmediately,
		logger:         cfg.Logger,
	}

	inner, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithLogger(&slogAdapter{logger: cfg.Logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s.inner = inner

	cronExpr := cfg.Interval
	if !isCronExpression(cfg.Interval) {
		cronExpr, err = durationToCron(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		s.logger.Info("Converting duration to cron",
			"duration", cfg.Interval, "cron", cronExpr, "timezone", cfg.Timezone.String())
	}

	withSeconds := strings.Count(cronExpr, " ") == 5
	job, err := inner.NewJob(
		gocron.CronJob(cronExpr, withSeconds),
		gocron.NewTask(func() {
			if err := jobFunc(ctx); err != nil {
				s.logger.Error("Job execution failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}
	s.job = job

	return s, nil
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	if s.runImmediately {
		s.logger.Info("Executing job immediately before starting scheduler")
		if err := s.job.RunNow(); err != nil {
			s.logger.Error("Immediate execution failed", "error", err)
		}
	}

	s.inner.Start()

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started",
			"next_run", nextRun.Format(time.RFC3339), "timezone", s.timezone.String())
	} else {
		s.logger.Info("Scheduler started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.inner.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// ExpectedInterval reports the interval between runs, used by the health
// checker for staleness grace periods. Cron schedules may be irregular,
// so they get a conservative default.
func (s *Scheduler) ExpectedInterval() time.Duration {
	if duration, err := time.ParseDuration(s.interval); err == nil {
		return duration
	}
	return 5 * time.Minute
}

// isCronExpression checks if a string is a cron expression (vs duration)
func isCronExpression(s string) bool {
	return cronPattern.MatchString(s)
}

// durationToCron converts a duration string to a clock-aligned cron
// expression: "15m" -> "*/15 * * * *", "2h" -> "0 */2 * * *",
// "30s" -> "*/30 * * * * *". Intervals must divide evenly into the
// clock unit so runs land on the same boundaries every day.
func durationToCron(durationStr string) (string, error) {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return "", fmt.Errorf("invalid duration format: %w", err)
	}

	switch {
	case duration < time.Minute:
		seconds := int(duration.Seconds())
		if seconds == 0 || 60%seconds != 0 {
			return "", fmt.Errorf("second intervals must divide evenly into 60 (got %ds)", seconds)
		}
		return fmt.Sprintf("*/%d * * * * *", seconds), nil

	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if duration%time.Minute != 0 || 60%minutes != 0 {
			return "", fmt.Errorf("minute intervals must divide evenly into 60 (got %s)", durationStr)
		}
		return fmt.Sprintf("*/%d * * * *", minutes), nil

	case duration%time.Hour == 0:
		hours := int(duration.Hours())
		if 24%hours != 0 {
			return "", fmt.Errorf("hour intervals must divide evenly into 24 (got %dh)", hours)
		}
		return fmt.Sprintf("0 */%d * * *", hours), nil

	default:
		return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
	}
}

// ValidateScheduleInterval validates a schedule interval (duration or cron)
func ValidateScheduleInterval(interval string) error {
	if interval == "" {
		return nil // Empty is valid (one-shot mode)
	}

	if isCronExpression(interval) {
		fields := strings.Fields(interval)
		if len(fields) != 5 && len(fields) != 6 {
			return errors.New("cron expression must have 5 or 6 fields")
		}
		return nil
	}

	_, err := durationToCron(interval)
	return err
}

// Describe provides a human-readable description of the schedule
func Describe(interval string, timezone *time.Location) string {
	if timezone == nil {
		timezone = time.UTC
	}

	if isCronExpression(interval) {
		return fmt.Sprintf("cron: %s (%s)", interval, timezone.String())
	}

	cronExpr, err := durationToCron(interval)
	if err != nil {
		return fmt.Sprintf("invalid: %s", interval)
	}

	duration, _ := time.ParseDuration(interval)
	return fmt.Sprintf("every %s (aligned to clock, cron: %s, %s)", duration, cronExpr, timezone.String())
}

// slogAdapter adapts slog.Logger to the gocron.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
