package apply

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply/target"
	"github.com/opensase/upo/pkg/telemetry/logging"
	"github.com/opensase/upo/pkg/telemetry/metrics"
)

// Orchestrator pushes plans to targets. Targets run concurrently and
// independently: one target failing or hanging never blocks or rolls back
// another. Within a single target operations execute strictly in plan order,
// and the first failure stops that target's sequence.
type Orchestrator struct {
	clients map[string]target.Client
	logger  *logging.Logger
	metrics *metrics.ApplyMetrics
}

// OrchestratorConfig configures an Orchestrator. Logger and Metrics are
// optional; a nil logger discards output.
type OrchestratorConfig struct {
	Clients map[string]target.Client
	Logger  *logging.Logger
	Metrics *metrics.ApplyMetrics
}

// NewOrchestrator creates an orchestrator over the given target clients.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if len(cfg.Clients) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one target client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		clients: cfg.Clients,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// RunOptions controls one apply run.
type RunOptions struct {
	// PolicyName labels the report.
	PolicyName string

	// DryRun computes and reports the plans without sending any mutation.
	DryRun bool
}

// Run executes the plans. Each plan must name a target the orchestrator has a
// client for; plans for unknown targets fail that target's section without
// affecting the rest. The returned report covers every plan, including empty
// ones, which succeed trivially.
func (o *Orchestrator) Run(ctx context.Context, plans []*Plan, opts RunOptions) *Report {
	report := NewReport(opts.PolicyName, opts.DryRun)

	results := make(chan TargetResult, len(plans))
	for _, plan := range plans {
		go func(p *Plan) {
			results <- o.runTarget(ctx, p, opts.DryRun)
		}(plan)
	}

	collected := make(map[string]TargetResult, len(plans))
	for range plans {
		res := <-results
		collected[res.Target] = res
	}

	// Report sections in plan order, not completion order.
	for _, plan := range plans {
		report.Results = append(report.Results, collected[plan.Target])
	}
	report.FinishedAt = time.Now().UTC()

	return report
}

// runTarget applies one plan sequentially. The first failed operation stops
// the sequence; remaining operations count as skipped. Context cancellation
// is checked between operations, never mid-operation, so a target is left
// after a whole operation rather than inside one.
func (o *Orchestrator) runTarget(ctx context.Context, plan *Plan, dryRun bool) TargetResult {
	res := TargetResult{
		Target:      plan.Target,
		Fingerprint: plan.Fingerprint,
	}

	if dryRun {
		res.Status = StatusDryRun
		res.Skipped = len(plan.Operations)
		for _, op := range plan.Operations {
			res.Operations = append(res.Operations, OperationResult{Operation: op})
		}
		return res
	}

	client, ok := o.clients[plan.Target]
	if !ok {
		res.Status = StatusFailed
		res.Skipped = len(plan.Operations)
		res.Error = fmt.Sprintf("no client configured for target %q", plan.Target)
		return res
	}

	start := time.Now()
	for i, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			res.Status = StatusFailed
			res.Skipped = len(plan.Operations) - i
			res.Error = fmt.Sprintf("cancelled after %d of %d operations: %v", i, len(plan.Operations), err)
			break
		}

		opRes := OperationResult{Operation: op}
		// The write runs detached from the run context: aborting it mid-flight
		// would report a failure for a mutation the target may have committed.
		// The client's own timeout still bounds the call.
		if err := client.Apply(context.WithoutCancel(ctx), op); err != nil {
			opRes.Error = err.Error()
			res.Failed++
			res.Operations = append(res.Operations, opRes)
			res.Skipped = len(plan.Operations) - i - 1
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("%s %s/%s: %v", op.Kind, op.Resource, op.Name, err)
			o.logger.Error("apply operation failed",
				"target", plan.Target,
				"kind", string(op.Kind),
				"resource", op.Resource,
				"name", op.Name,
				"error", err)
			o.observe(plan.Target, string(op.Kind), "failed")
			break
		}

		res.Applied++
		res.Operations = append(res.Operations, opRes)
		o.observe(plan.Target, string(op.Kind), "applied")
	}

	if res.Status == "" {
		res.Status = StatusApplied
	}

	o.logger.Info("target apply finished",
		"target", plan.Target,
		"status", string(res.Status),
		"applied", res.Applied,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", time.Since(start).String())
	if o.metrics != nil {
		o.metrics.ObserveDuration(plan.Target, time.Since(start))
	}

	return res
}

func (o *Orchestrator) observe(targetName, kind, status string) {
	if o.metrics != nil {
		o.metrics.CountOperation(targetName, kind, status)
	}
}

// PlanAll reads each target's live state and diffs the compiled configs
// against it, in deterministic target order. Orderings supplies each
// adapter's operation-kind sequence. Configs carrying compile errors are
// planned anyway — gaps and errors are the compiler's report, and the caller
// decides whether such a config may be applied. A target whose state cannot
// be read fails the whole planning pass: applying against an unknown live
// state is how configs get clobbered.
func (o *Orchestrator) PlanAll(ctx context.Context, configs map[string]*adapters.CompiledConfig, orderings map[string][]adapters.OpKind) ([]*Plan, error) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	plans := make([]*Plan, 0, len(names))
	for _, name := range names {
		client, ok := o.clients[name]
		if !ok {
			return nil, fmt.Errorf("no client configured for target %q", name)
		}
		live, err := client.ReadState(ctx)
		if err != nil {
			return nil, fmt.Errorf("read live state of %s: %w", name, err)
		}
		plan, err := BuildPlan(configs[name], live, orderings[name])
		if err != nil {
			return nil, fmt.Errorf("plan for %s: %w", name, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
