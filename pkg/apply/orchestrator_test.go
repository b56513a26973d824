package apply

import (
	"context"
	"errors"
	"testing"

	"github.com/opensase/upo/pkg/adapters"
	"github.com/opensase/upo/pkg/apply/target"
)

func testPlan(targetName string, ops ...target.Operation) *Plan {
	return &Plan{Target: targetName, Fingerprint: "abc123", Operations: ops}
}

func addOp(resource, name string) target.Operation {
	return target.Operation{
		Kind: adapters.OpAdd, Resource: resource, Name: name,
		Content: map[string]any{"name": name},
	}
}

func newTestOrchestrator(t *testing.T, clients ...*target.MemoryClient) *Orchestrator {
	t.Helper()
	m := make(map[string]target.Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	o, err := NewOrchestrator(OrchestratorConfig{Clients: m})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o
}

func TestRun_AppliesAllOperations(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	plan := testPlan("opnsense",
		addOp("firewall-rule", "hq-allow"),
		addOp("vlan", "hq"),
	)

	report := o.Run(context.Background(), []*Plan{plan}, RunOptions{PolicyName: "branch-baseline"})

	if !report.Success() {
		t.Fatalf("expected success, got %+v", report.Results)
	}
	res := report.Result("opnsense")
	if res == nil || res.Status != StatusApplied {
		t.Fatalf("expected applied status, got %+v", res)
	}
	if res.Applied != 2 || res.Failed != 0 || res.Skipped != 0 {
		t.Errorf("counts wrong: %d/%d/%d", res.Applied, res.Failed, res.Skipped)
	}
	if got := len(client.Applied()); got != 2 {
		t.Errorf("client saw %d operations, want 2", got)
	}
	if report.ID == "" {
		t.Error("report must carry a run ID")
	}
}

func TestRun_MidSequenceFailureStopsTarget(t *testing.T) {
	client := target.NewMemoryClient("ziti")
	client.FailOn[target.ItemKey("service", "broken")] = errors.New("controller rejected service")
	o := newTestOrchestrator(t, client)

	plan := testPlan("ziti",
		addOp("service", "first"),
		addOp("service", "broken"),
		addOp("service", "never-reached"),
	)

	report := o.Run(context.Background(), []*Plan{plan}, RunOptions{})

	if report.Success() {
		t.Fatal("run with a failed target must not report success")
	}
	res := report.Result("ziti")
	if res.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", res.Status)
	}
	if res.Applied != 1 || res.Failed != 1 || res.Skipped != 1 {
		t.Errorf("expected 1 applied, 1 failed, 1 skipped; got %d/%d/%d",
			res.Applied, res.Failed, res.Skipped)
	}
	if got := len(client.Applied()); got != 1 {
		t.Errorf("operations after a failure must not be attempted, client saw %d", got)
	}
}

func TestRun_FailedTargetDoesNotBlockOthers(t *testing.T) {
	healthy := target.NewMemoryClient("opnsense")
	broken := target.NewMemoryClient("flexiwan")
	broken.FailOn[target.ItemKey("segment", "hq")] = errors.New("api unreachable")
	o := newTestOrchestrator(t, healthy, broken)

	plans := []*Plan{
		testPlan("opnsense", addOp("firewall-rule", "hq-allow")),
		testPlan("flexiwan", addOp("segment", "hq")),
	}

	report := o.Run(context.Background(), plans, RunOptions{})

	if got := report.Result("opnsense").Status; got != StatusApplied {
		t.Errorf("healthy target must apply despite sibling failure, got %s", got)
	}
	if got := report.Result("flexiwan").Status; got != StatusFailed {
		t.Errorf("expected flexiwan failed, got %s", got)
	}
	// No rollback: the healthy target keeps its applied operations.
	if got := len(healthy.Applied()); got != 1 {
		t.Errorf("expected 1 applied operation on healthy target, got %d", got)
	}
}

func TestRun_DryRunSendsNothing(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	plan := testPlan("opnsense", addOp("firewall-rule", "hq-allow"))

	report := o.Run(context.Background(), []*Plan{plan}, RunOptions{DryRun: true})

	if !report.Success() {
		t.Fatal("dry run must report success")
	}
	res := report.Result("opnsense")
	if res.Status != StatusDryRun {
		t.Errorf("expected dry-run-only status, got %s", res.Status)
	}
	if res.Applied != 0 || res.Skipped != 1 {
		t.Errorf("dry run counts wrong: applied=%d skipped=%d", res.Applied, res.Skipped)
	}
	if got := len(client.Applied()); got != 0 {
		t.Errorf("dry run must not mutate the target, client saw %d operations", got)
	}
}

func TestRun_CancellationSkipsRemaining(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := testPlan("opnsense",
		addOp("firewall-rule", "a"),
		addOp("firewall-rule", "b"),
	)

	report := o.Run(ctx, []*Plan{plan}, RunOptions{})

	res := report.Result("opnsense")
	if res.Status != StatusFailed {
		t.Fatalf("cancelled run must report failure, got %s", res.Status)
	}
	if res.Skipped != 2 {
		t.Errorf("expected both operations skipped, got %d", res.Skipped)
	}
	if got := len(client.Applied()); got != 0 {
		t.Errorf("cancelled run must not mutate, client saw %d operations", got)
	}
}

// cancelDuringApplyClient cancels the run context from inside a write, then
// reports whether that write itself observed the cancellation.
type cancelDuringApplyClient struct {
	name        string
	cancel      context.CancelFunc
	interrupted bool
	applied     int
}

func (c *cancelDuringApplyClient) Name() string { return c.name }

func (c *cancelDuringApplyClient) ReadState(ctx context.Context) (target.State, error) {
	return target.NewState(), nil
}

func (c *cancelDuringApplyClient) Apply(ctx context.Context, op target.Operation) error {
	c.cancel()
	select {
	case <-ctx.Done():
		c.interrupted = true
		return ctx.Err()
	default:
	}
	c.applied++
	return nil
}

func TestRun_CancellationNeverInterruptsInFlightWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &cancelDuringApplyClient{name: "opnsense", cancel: cancel}
	o, err := NewOrchestrator(OrchestratorConfig{
		Clients: map[string]target.Client{"opnsense": client},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	plan := testPlan("opnsense",
		addOp("firewall-rule", "a"),
		addOp("firewall-rule", "b"),
	)

	report := o.Run(ctx, []*Plan{plan}, RunOptions{})

	if client.interrupted {
		t.Fatal("a write already in flight must not see the run cancellation")
	}
	if client.applied != 1 {
		t.Fatalf("first write must complete, client saw %d", client.applied)
	}
	res := report.Result("opnsense")
	if res.Status != StatusFailed {
		t.Errorf("cancelled run must report failure, got %s", res.Status)
	}
	if res.Applied != 1 || res.Failed != 0 || res.Skipped != 1 {
		t.Errorf("expected 1 applied, 0 failed, 1 skipped; got %d/%d/%d",
			res.Applied, res.Failed, res.Skipped)
	}
}

func TestRun_UnknownTargetFailsOnlyItself(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	plans := []*Plan{
		testPlan("opnsense", addOp("vlan", "hq")),
		testPlan("nonexistent", addOp("thing", "x")),
	}

	report := o.Run(context.Background(), plans, RunOptions{})

	if got := report.Result("opnsense").Status; got != StatusApplied {
		t.Errorf("known target must still apply, got %s", got)
	}
	unknown := report.Result("nonexistent")
	if unknown.Status != StatusFailed || unknown.Skipped != 1 {
		t.Errorf("unknown target must fail with all operations skipped, got %+v", unknown)
	}
}

func TestRun_EmptyPlanSucceedsTrivially(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	report := o.Run(context.Background(), []*Plan{testPlan("opnsense")}, RunOptions{})

	res := report.Result("opnsense")
	if res.Status != StatusApplied || res.Applied != 0 {
		t.Errorf("empty plan must succeed with zero operations, got %+v", res)
	}
}

func TestPlanAll_DiffsAgainstLiveState(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	o := newTestOrchestrator(t, client)

	cfg := testConfig(item("firewall-rule", "hq-allow", map[string]any{"action": "accept"}))
	plans, err := o.PlanAll(context.Background(),
		map[string]*adapters.CompiledConfig{"opnsense": cfg},
		map[string][]adapters.OpKind{"opnsense": testOrder})
	if err != nil {
		t.Fatalf("PlanAll() error = %v", err)
	}
	if len(plans) != 1 || len(plans[0].Operations) != 1 {
		t.Fatalf("expected one plan with one add, got %+v", plans)
	}

	// Apply, then re-plan: the fixed point is an empty plan.
	report := o.Run(context.Background(), plans, RunOptions{})
	if !report.Success() {
		t.Fatalf("apply failed: %+v", report.Results)
	}

	plans, err = o.PlanAll(context.Background(),
		map[string]*adapters.CompiledConfig{"opnsense": cfg},
		map[string][]adapters.OpKind{"opnsense": testOrder})
	if err != nil {
		t.Fatalf("PlanAll() error = %v", err)
	}
	if !plans[0].Empty() {
		t.Errorf("re-plan after apply must be empty, got %v", plans[0].Operations)
	}
}

func TestPlanAll_ReadFailureAbortsPlanning(t *testing.T) {
	client := target.NewMemoryClient("opnsense")
	client.ReadErr = errors.New("api timeout")
	o := newTestOrchestrator(t, client)

	cfg := testConfig(item("vlan", "hq", map[string]any{"tag": 10}))
	_, err := o.PlanAll(context.Background(),
		map[string]*adapters.CompiledConfig{"opnsense": cfg},
		map[string][]adapters.OpKind{"opnsense": testOrder})
	if err == nil {
		t.Fatal("planning against an unreadable target must fail")
	}
}
