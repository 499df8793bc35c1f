// Package cron provides scheduled background maintenance using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soundimports/pricelens/internal/domain/template"
	"github.com/soundimports/pricelens/pkg/metrics"
)

// Scheduler manages background maintenance jobs using robfig/cron.
type Scheduler struct {
	cron           *cron.Cron
	templates      template.TemplateStore
	logger         *slog.Logger
	schedule       string
	pruneAfter     time.Duration
	maxSuccessRate float64
}

// NewScheduler creates a maintenance scheduler. Templates unused for
// pruneAfter whose success rate stayed below maxSuccessRate are removed on
// the given 5-field cron schedule.
func NewScheduler(templates template.TemplateStore, schedule string, pruneAfter time.Duration, maxSuccessRate float64, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:           c,
		templates:      templates,
		logger:         logger,
		schedule:       schedule,
		pruneAfter:     pruneAfter,
		maxSuccessRate: maxSuccessRate,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.pruneStaleTemplates)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the prune job (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.pruneStaleTemplates()
}

// pruneStaleTemplates removes templates that stopped earning their keep.
func (s *Scheduler) pruneStaleTemplates() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.pruneAfter)
	s.logger.Info("starting template prune",
		slog.Time("unused_since", cutoff),
		slog.Float64("max_success_rate", s.maxSuccessRate),
	)

	pruned, err := s.templates.Prune(ctx, cutoff, s.maxSuccessRate)
	if err != nil {
		s.logger.Error("template prune failed", slog.Any("error", err))
		return
	}

	metrics.RecordPrune(pruned)
	s.logger.Info("template prune completed", slog.Int("templates_pruned", pruned))
}
