// Package lifecycle advances plan steps through the implementation stages.
//
// The engine owns the transition table and the execution protocol. Each run
// selects the first step (in plan order) whose effective state satisfies the
// requested stage's precondition, performs the stage action through the
// agent or git collaborator, runs the gate pipeline, and records either the
// stage's success state or lifecycle-error-<n>. Every recorded transition is
// persisted before the run returns, so an interrupted session resumes
// exactly where it stopped.
//
// Key types:
//   - [Engine] - the runner, wired with its collaborators via [Deps]
//   - [Result] - outcome of one stage run
//   - [AgentError], [GateFailure] - the two lifecycle failure kinds
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stagehand/internal/agent"
	"stagehand/internal/config"
	"stagehand/internal/gate"
	"stagehand/internal/logging"
	"stagehand/internal/output"
	"stagehand/internal/plan"
	"stagehand/internal/state"
	"stagehand/internal/vcs"
)

// stageSpec is one row of the transition table.
type stageSpec struct {
	Stage        int
	Action       string
	Precondition state.StepState
	Success      state.StepState
}

// stageSpecs is the complete lifecycle, in stage order. A step is eligible
// for stage n when its effective state is the precondition or the stage's
// own error state; error states re-enter the stage that failed.
var stageSpecs = []stageSpec{
	{Stage: 1, Action: "implement", Precondition: state.StatePlanned, Success: state.StateImplemented},
	{Stage: 2, Action: "check", Precondition: state.StateImplemented, Success: state.StateChecked},
	{Stage: 3, Action: "test", Precondition: state.StateChecked, Success: state.StateTested},
	{Stage: 4, Action: "finalize", Precondition: state.StateTested, Success: state.StateFinalized},
	{Stage: 5, Action: "commit", Precondition: state.StateFinalized, Success: state.StateCommitted},
}

// specFor returns the table row for a stage number.
func specFor(stage int) (stageSpec, error) {
	for _, s := range stageSpecs {
		if s.Stage == stage {
			return s, nil
		}
	}
	return stageSpec{}, fmt.Errorf("invalid stage: %d (want %d..%d)", stage, state.MinStage, state.MaxStage)
}

// AgentError reports an agent invocation that exited non-zero.
type AgentError struct {
	Stage    int
	ExitCode int
	Output   string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent failed at stage %d (exit %d)", e.Stage, e.ExitCode)
}

// GateFailure reports a gate pipeline that did not pass, including the
// no-silent-test-deletion rule.
type GateFailure struct {
	Stage  int
	Output string
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("gates failed at stage %d", e.Stage)
}

// Outcome classifies a stage run.
type Outcome int

const (
	// Advanced means one step moved to the stage's success state.
	Advanced Outcome = iota

	// NoEligibleStep means no step satisfied the stage's precondition.
	// The run changed nothing.
	NoEligibleStep

	// Failed means the selected step's action or gates failed and the
	// step was marked lifecycle-error-<n>.
	Failed
)

// Result is the outcome of one stage run.
type Result struct {
	Outcome Outcome
	Stage   int

	// Step identification, empty when no step was selected.
	StepID   string
	StepText string

	// From and To are the recorded transition.
	From state.StepState
	To   state.StepState

	// FailureOutput carries the captured collaborator output for failed
	// runs, verbatim.
	FailureOutput string

	// Err is the typed failure ([AgentError], [GateFailure], or
	// [vcs.CommitError]) when Outcome is Failed.
	Err error
}

// StateStore is the persistence the engine needs: lookups, updates, and a
// durable save. [state.FileStore] satisfies it.
type StateStore interface {
	Get(id string) (state.StepState, bool)
	Set(id string, st state.StepState)
	OrderedIDs() []string
	Save() error
}

// Deps wires the engine's collaborators.
type Deps struct {
	Config   *config.Config
	Plan     *plan.Plan
	PlanPath string
	Store    StateStore
	Agent    agent.Executor
	Git      vcs.Git
	Gates    *gate.Pipeline
	Printer  *output.Printer
	Log      *logging.Logger
}

// Engine advances plan steps through the lifecycle.
type Engine struct {
	cfg      *config.Config
	plan     *plan.Plan
	planPath string
	store    StateStore
	agent    agent.Executor
	git      vcs.Git
	gates    *gate.Pipeline
	printer  *output.Printer
	log      *logging.Logger
}

// New creates an Engine from its dependencies.
func New(deps Deps) *Engine {
	return &Engine{
		cfg:      deps.Config,
		plan:     deps.Plan,
		planPath: deps.PlanPath,
		store:    deps.Store,
		agent:    deps.Agent,
		git:      deps.Git,
		gates:    deps.Gates,
		printer:  deps.Printer,
		log:      deps.Log,
	}
}

// EffectiveState resolves a step's current state: the persisted entry when
// one exists, then the plan's declared state, then planned.
func (e *Engine) EffectiveState(s plan.Step) state.StepState {
	if st, ok := e.store.Get(s.ID); ok {
		return st
	}
	if s.DeclaredState != "" {
		return s.DeclaredState
	}
	return state.StatePlanned
}

// eligible reports whether the step may enter the given stage.
func eligible(spec stageSpec, st state.StepState) bool {
	return st == spec.Precondition || st == state.ErrorState(spec.Stage)
}

// selectStep returns the first plan-order step eligible for the stage.
func (e *Engine) selectStep(spec stageSpec) (plan.Step, bool) {
	for _, s := range e.plan.Steps {
		if eligible(spec, e.EffectiveState(s)) {
			return s, true
		}
	}
	return plan.Step{}, false
}

// SelectFor returns the step the given stage would select, without running
// anything. False when the stage is invalid or nothing is eligible.
func (e *Engine) SelectFor(stage int) (plan.Step, bool) {
	spec, err := specFor(stage)
	if err != nil {
		return plan.Step{}, false
	}
	return e.selectStep(spec)
}

// NextEligible returns the lowest-stage step a run would pick up next.
func (e *Engine) NextEligible() (plan.Step, int, bool) {
	for _, spec := range stageSpecs {
		if s, ok := e.selectStep(spec); ok {
			return s, spec.Stage, true
		}
	}
	return plan.Step{}, 0, false
}

// StatusRow is one step's position for display.
type StatusRow struct {
	ID    string
	Text  string
	State state.StepState

	// Orphaned marks a recorded entry whose step is no longer in the plan.
	Orphaned bool
}

// StatusRows returns every step's effective state in plan order, followed by
// recorded entries whose steps have been removed from the plan (in numeric
// id order). Orphans are reported rather than dropped; store cleanup is an
// explicit operation, never a side effect of rendering.
func (e *Engine) StatusRows() []StatusRow {
	rows := make([]StatusRow, 0, len(e.plan.Steps))
	for _, s := range e.plan.Steps {
		rows = append(rows, StatusRow{ID: s.ID, Text: s.Text, State: e.EffectiveState(s)})
	}
	for _, id := range e.store.OrderedIDs() {
		if e.plan.Find(id) != nil {
			continue
		}
		st, _ := e.store.Get(id)
		rows = append(rows, StatusRow{ID: id, Text: "(not in plan)", State: st, Orphaned: true})
	}
	return rows
}

// RunStage advances at most one step through the given stage.
//
// Lifecycle failures (agent exit, gate failure, commit failure) are not
// errors: the step is marked lifecycle-error-<n>, the store is saved, and
// the Result carries the typed failure. The error return is reserved for
// infrastructure problems where no transition could be recorded.
func (e *Engine) RunStage(ctx context.Context, stage int) (Result, error) {
	spec, err := specFor(stage)
	if err != nil {
		return Result{}, err
	}

	step, ok := e.selectStep(spec)
	if !ok {
		e.log.Info("no eligible step", "stage", spec.Stage)
		return Result{Outcome: NoEligibleStep, Stage: spec.Stage}, nil
	}

	from := e.EffectiveState(step)
	e.printer.Step("step %s [stage %d %s]: %s", step.ID, spec.Stage, spec.Action, step.Text)
	e.log.Info("stage start", "step", step.ID, "stage", spec.Stage, "action", spec.Action, "from", from.String())

	res := Result{Stage: spec.Stage, StepID: step.ID, StepText: step.Text, From: from}

	failure, err := e.execute(ctx, spec, step)
	if err != nil {
		return Result{}, err
	}
	if failure != nil {
		res.Outcome = Failed
		res.To = state.ErrorState(spec.Stage)
		res.Err = failure
		res.FailureOutput = failureOutput(failure)

		e.store.Set(step.ID, res.To)
		if err := e.store.Save(); err != nil {
			return Result{}, fmt.Errorf("failed to persist error state for step %s: %w", step.ID, err)
		}
		e.printer.Error("step %s failed at stage %d, recorded %s", step.ID, spec.Stage, res.To)
		e.printer.Raw(res.FailureOutput)
		e.log.Error("stage failed", "step", step.ID, "stage", spec.Stage, "state", res.To.String())
		return res, nil
	}

	res.Outcome = Advanced
	res.To = spec.Success
	e.store.Set(step.ID, res.To)
	if err := e.store.Save(); err != nil {
		return Result{}, fmt.Errorf("failed to persist state for step %s: %w", step.ID, err)
	}
	e.printer.Step("step %s advanced to %s", step.ID, res.To)
	e.log.Info("stage complete", "step", step.ID, "stage", spec.Stage, "state", res.To.String())
	return res, nil
}

// execute performs the stage protocol for one step. It returns the typed
// lifecycle failure when the stage did not succeed, or an infrastructure
// error when the protocol could not run at all.
func (e *Engine) execute(ctx context.Context, spec stageSpec, step plan.Step) (error, error) {
	// Stage 5 verifies first, then commits: the checkpoint must capture a
	// tree the gates have just blessed.
	if spec.Stage == 5 {
		if failure := e.runGates(ctx, spec); failure != nil {
			return failure, nil
		}
		return e.commit(ctx, step)
	}

	var baseline int
	var haveBaseline bool
	if spec.Stage == 3 {
		baseline, haveBaseline = e.countTests(ctx)
	}

	agentOutput, failure, err := e.runAgent(ctx, spec, step)
	if err != nil || failure != nil {
		return failure, err
	}

	if failure := e.runGates(ctx, spec); failure != nil {
		return failure, nil
	}

	if spec.Stage == 3 && haveBaseline {
		if failure := e.checkTestCount(ctx, spec, baseline, agentOutput); failure != nil {
			return failure, nil
		}
	}
	return nil, nil
}

// runAgent expands the stage prompt and invokes the agent, streaming events
// to the printer. For stages past the first the pending diff is written to
// a temp file and handed to the prompt, so the agent reviews what actually
// changed instead of re-deriving it.
func (e *Engine) runAgent(ctx context.Context, spec stageSpec, step plan.Step) (string, error, error) {
	data := config.PromptData{
		StepID:   step.ID,
		StepText: step.Text,
		Action:   spec.Action,
		PlanPath: e.planPath,
	}
	if spec.Stage >= 2 {
		diffPath, err := vcs.WriteDiffFile(ctx, e.git)
		if err != nil {
			return "", nil, fmt.Errorf("failed to capture pending diff: %w", err)
		}
		defer os.Remove(diffPath)
		data.DiffPath = diffPath
	}

	prompt, err := e.cfg.PromptFor(spec.Stage, data)
	if err != nil {
		return "", nil, err
	}
	model, err := e.cfg.ModelFor(spec.Stage)
	if err != nil {
		return "", nil, err
	}

	e.printer.Substep("invoking agent (model %s)", model)
	e.log.Debug("agent invoke", "step", step.ID, "stage", spec.Stage, "model", model)

	res, err := e.agent.Invoke(ctx, agent.Request{Prompt: prompt, Model: model}, e.printer.AgentEvent)
	if err != nil {
		// A call that never ran (missing binary, exec refusal) is still a
		// failed external call: the step must land in the stage's error
		// state so the next run retries it.
		return "", &AgentError{Stage: spec.Stage, ExitCode: -1, Output: err.Error()}, nil
	}
	if !res.Success() {
		return "", &AgentError{Stage: spec.Stage, ExitCode: res.ExitCode, Output: res.Output}, nil
	}
	return res.Output, nil, nil
}

// runGates runs the verification pipeline and prints the per-check summary.
func (e *Engine) runGates(ctx context.Context, spec stageSpec) error {
	e.printer.Substep("running gates")
	result := e.gates.Run(ctx)
	e.printer.GateSummary(result)
	if result.Passed() {
		return nil
	}
	return &GateFailure{Stage: spec.Stage, Output: result.FailureOutput()}
}

// commit records the stage-5 checkpoint via git.
func (e *Engine) commit(ctx context.Context, step plan.Step) (error, error) {
	msg, err := e.cfg.CommitMessage(config.CommitData{StepID: step.ID, StepText: step.Text})
	if err != nil {
		return nil, err
	}
	e.printer.Substep("committing: %s", msg)
	out, err := e.git.StageAllAndCommit(ctx, msg)
	if err != nil {
		if vcs.IsCommitError(err) {
			return err, nil
		}
		return nil, err
	}
	e.log.Info("checkpoint committed", "step", step.ID, "message", msg)
	e.printer.Substep("%s", strings.TrimRight(out, "\n"))
	return nil, nil
}

// countTests snapshots the test count before the stage-3 action. A missing
// counter or a failing count command disables the rule for this run rather
// than blocking the stage.
func (e *Engine) countTests(ctx context.Context) (int, bool) {
	counter, ok := e.gates.TestCounter()
	if !ok {
		return 0, false
	}
	n, err := counter.CountTests(ctx)
	if err != nil {
		e.log.Warn("test count unavailable", "error", err.Error())
		return 0, false
	}
	return n, true
}

// checkTestCount enforces the no-silent-test-deletion rule: a drop in the
// test count across stage 3 must be justified by a removed-tests: line in
// the agent's output.
func (e *Engine) checkTestCount(ctx context.Context, spec stageSpec, baseline int, agentOutput string) error {
	after, ok := e.countTests(ctx)
	if !ok || after >= baseline {
		return nil
	}
	if hasRemovalJustification(agentOutput) {
		e.log.Info("test count decreased with justification", "before", baseline, "after", after)
		return nil
	}
	return &GateFailure{
		Stage: spec.Stage,
		Output: fmt.Sprintf("test count decreased from %d to %d with no removed-tests: justification in the agent output",
			baseline, after),
	}
}

// removalMarker is the line prefix that justifies a test-count decrease.
const removalMarker = "removed-tests:"

func hasRemovalJustification(agentOutput string) bool {
	for _, line := range strings.Split(agentOutput, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), removalMarker) {
			return true
		}
	}
	return false
}

// failureOutput extracts the captured output from a typed failure.
func failureOutput(err error) string {
	switch f := err.(type) {
	case *AgentError:
		return f.Output
	case *GateFailure:
		return f.Output
	case *vcs.CommitError:
		return f.Output
	}
	return err.Error()
}

// RunAuto runs stages until nothing is eligible or a run fails. Each
// iteration picks the lowest stage with an eligible step, so earlier steps
// finish their lifecycle before later steps start theirs only as far as the
// transition table allows.
func (e *Engine) RunAuto(ctx context.Context) ([]Result, error) {
	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		_, stage, ok := e.NextEligible()
		if !ok {
			e.printer.Step("nothing left to do: all steps committed")
			return results, nil
		}
		res, err := e.RunStage(ctx, stage)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.Outcome == Failed {
			return results, nil
		}
	}
}
