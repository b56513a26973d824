// Package drift periodically re-plans the current intent against the live
// state of every target and reports the differences. Drift is anything a
// target accumulated outside the orchestrator: a hand-edited firewall rule, a
// service created directly on the controller. The checker only observes; it
// never applies the correcting plan itself.
package drift

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply"
	"github.com/opensase/upo/pkg/telemetry/logging"
)

// Planner is the slice of the orchestrator the checker needs.
type Planner interface {
	PlanAll(ctx context.Context, configs map[string]*adapters.CompiledConfig, orderings map[string][]adapters.OpKind) ([]*apply.Plan, error)
}

// Report is the outcome of one drift check.
type Report struct {
	CheckedAt time.Time
	Targets   map[string]*apply.Plan

	// Err is set when the check itself failed, e.g. a target was unreachable.
	Err error
}

// Drifted returns the names of targets whose live state differs from the
// compiled configuration.
func (r *Report) Drifted() []string {
	var out []string
	for name, plan := range r.Targets {
		if plan != nil && !plan.Empty() {
			out = append(out, name)
		}
	}
	return out
}

// Config configures the checker.
type Config struct {
	// Schedule is a standard cron expression, e.g. "*/15 * * * *" for every
	// fifteen minutes. Empty disables scheduled checks; Check still works.
	Schedule string
}

// Checker runs drift checks, on demand and on a cron schedule.
type Checker struct {
	planner   Planner
	configs   map[string]*adapters.CompiledConfig
	orderings map[string][]adapters.OpKind
	config    Config
	logger    *logging.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	last    *Report

	// OnReport, when set, is called with every completed report. Set before
	// Start; the checker does not synchronize changes afterwards.
	OnReport func(*Report)
}

// NewChecker creates a checker over the given compiled configurations.
func NewChecker(planner Planner, configs map[string]*adapters.CompiledConfig, orderings map[string][]adapters.OpKind, cfg Config, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Checker{
		planner:   planner,
		configs:   configs,
		orderings: orderings,
		config:    cfg,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Check runs one drift check now.
func (c *Checker) Check(ctx context.Context) *Report {
	report := &Report{
		CheckedAt: time.Now().UTC(),
		Targets:   make(map[string]*apply.Plan),
	}

	plans, err := c.planner.PlanAll(ctx, c.configs, c.orderings)
	if err != nil {
		report.Err = err
		c.logger.Error("drift check failed", "error", err)
	} else {
		for _, plan := range plans {
			report.Targets[plan.Target] = plan
		}
		if drifted := report.Drifted(); len(drifted) > 0 {
			c.logger.Warn("drift detected", "targets", fmt.Sprintf("%v", drifted))
		} else {
			c.logger.Debug("no drift detected")
		}
	}

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()

	if c.OnReport != nil {
		c.OnReport(report)
	}
	return report
}

// Start begins scheduled checks. With an empty schedule it is a no-op.
func (c *Checker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.Schedule == "" {
		c.logger.Info("drift schedule not configured, scheduled checks disabled")
		return nil
	}

	if _, err := cron.ParseStandard(c.config.Schedule); err != nil {
		return fmt.Errorf("invalid drift schedule %q: %w", c.config.Schedule, err)
	}

	if _, err := c.cron.AddFunc(c.config.Schedule, func() {
		c.Check(ctx)
	}); err != nil {
		return fmt.Errorf("schedule drift check: %w", err)
	}

	c.cron.Start()
	c.running = true
	c.logger.Info("drift checker started", "schedule", c.config.Schedule)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return nil
}

// Stop halts scheduled checks and waits for a running check to finish.
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		<-c.cron.Stop().Done()
		c.running = false
		c.logger.Info("drift checker stopped")
	}
}

// IsRunning reports whether scheduled checks are active.
func (c *Checker) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Last returns the most recent report, or nil before the first check.
func (c *Checker) Last() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
