package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/agent"
	"stagehand/internal/plan"
)

// fakeGit keeps the CLI tests free of a real repository.
type fakeGit struct {
	commits []string
}

func (g *fakeGit) PendingChanges(ctx context.Context) (string, error) {
	return "diff --git a/x b/x\n", nil
}

func (g *fakeGit) StageAllAndCommit(ctx context.Context, message string) (string, error) {
	g.commits = append(g.commits, message)
	return "committed", nil
}

// cheapGatesConfig is a config whose gates run instantly and always pass,
// with a constant test count.
const cheapGatesConfig = `gates:
  - name: lint
    command: "true"
  - name: test
    command: "true"
    count_command: echo
    count_args: ["TestA"]
`

// fixture writes a plan and config into a temp dir and returns a wired App.
func fixture(t *testing.T, planText string) (*App, string, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	planPath := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte(planText), 0o644))

	cfgPath := filepath.Join(dir, "stagehand.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cheapGatesConfig), 0o644))

	var buf bytes.Buffer
	app := &App{
		Stdout: &buf,
		Agent:  &agent.MockExecutor{Output: "done"},
		Git:    &fakeGit{},
	}
	return app, planPath, cfgPath, &buf
}

const twoStepPlan = "1. Add the parser\n2. Add the store\n"

func readStateFile(t *testing.T, planPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(planPath), stateDirName, "state.yaml"))
	require.NoError(t, err)
	return string(data)
}

func TestRunCommand_AdvancesStepAndPersistsState(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "1"})
	require.NoError(t, res.Err)
	assert.Zero(t, res.ExitCode)

	assert.Contains(t, out.String(), "step 1")
	assert.Contains(t, readStateFile(t, planPath), "implemented")

	// The sidecar cache is written alongside the plan.
	_, err := os.Stat(plan.StepsPathFor(planPath))
	assert.NoError(t, err)
}

func TestRunCommand_ResumesFromPersistedState(t *testing.T) {
	app, planPath, cfgPath, _ := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "1"})
	require.Zero(t, res.ExitCode)

	// A fresh invocation picks up step 2; step 1 is already implemented.
	res = RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "1"})
	require.Zero(t, res.ExitCode)

	content := readStateFile(t, planPath)
	assert.Contains(t, content, `"1": implemented`)
	assert.Contains(t, content, `"2": implemented`)
}

func TestRunCommand_DefaultsToLowestEligibleStage(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, "1. Only step\n")

	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath})
	require.Zero(t, res.ExitCode)
	assert.Contains(t, out.String(), "stage 1")
}

func TestRunCommand_AgentFailureExitsOne(t *testing.T) {
	app, planPath, cfgPath, _ := fixture(t, twoStepPlan)
	app.Agent = &agent.MockExecutor{ExitCode: 1, Output: "agent blew up"}

	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "1"})
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, readStateFile(t, planPath), "lifecycle-error-1")
}

func TestRunCommand_MissingPlan(t *testing.T) {
	app, _, cfgPath, _ := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"run", "/nonexistent/plan.md", "--config", cfgPath})
	assert.Equal(t, 1, res.ExitCode)
	assert.Error(t, res.Err)
}

func TestStatusCommand(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"status", planPath, "--config", cfgPath})
	require.Zero(t, res.ExitCode)

	assert.Contains(t, out.String(), "planned")
	assert.Contains(t, out.String(), "0/5")
	assert.Contains(t, out.String(), "Add the parser")
	assert.Contains(t, out.String(), "Add the store")
}

func TestStatusCommand_ShowsProgressAndRemovedEntries(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	// Advance step 1, then record an entry for a step the plan no longer has.
	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "1"})
	require.Zero(t, res.ExitCode)

	statePath := filepath.Join(filepath.Dir(planPath), stateDirName, "state.yaml")
	require.NoError(t, os.WriteFile(statePath, []byte("steps:\n  \"1\": implemented\n  \"7\": implemented-committed\n"), 0o644))

	out.Reset()
	res = RunWithArgs(app, []string{"status", planPath, "--config", cfgPath})
	require.Zero(t, res.ExitCode)

	assert.Contains(t, out.String(), "1/5")
	assert.Contains(t, out.String(), "5/5")
	assert.Contains(t, out.String(), "(not in plan)")
}

func TestNextCommand(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"next", planPath, "--config", cfgPath})
	require.Zero(t, res.ExitCode)
	assert.Contains(t, out.String(), "step 1 at stage 1")
}

func TestNextCommand_StagePreview(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"next", planPath, "--config", cfgPath, "--stage", "1"})
	require.Zero(t, res.ExitCode)
	assert.Contains(t, out.String(), "stage 1 would select step 1")

	out.Reset()
	res = RunWithArgs(app, []string{"next", planPath, "--config", cfgPath, "--stage", "3"})
	require.Zero(t, res.ExitCode)
	assert.Contains(t, out.String(), "stage 3 has no eligible step")
}

func TestRunCommand_NoEligibleStepIsSuccess(t *testing.T) {
	app, planPath, cfgPath, out := fixture(t, twoStepPlan)

	res := RunWithArgs(app, []string{"run", planPath, "--config", cfgPath, "--stage", "4"})
	require.NoError(t, res.Err)
	assert.Zero(t, res.ExitCode)
	assert.Contains(t, out.String(), "nothing to do")
	assert.Empty(t, app.Agent.(*agent.MockExecutor).Requests)
}

func TestAutoCommand_DrivesPlanToCommitted(t *testing.T) {
	app, planPath, cfgPath, _ := fixture(t, twoStepPlan)
	git := app.Git.(*fakeGit)

	res := RunWithArgs(app, []string{"auto", planPath, "--config", cfgPath})
	require.NoError(t, res.Err)
	require.Zero(t, res.ExitCode)

	content := readStateFile(t, planPath)
	assert.Contains(t, content, `"1": implemented-committed`)
	assert.Contains(t, content, `"2": implemented-committed`)
	require.Len(t, git.commits, 2)
	assert.Contains(t, git.commits[0], "implemented-finalized: step 1")
}

func TestAutoCommand_StopsOnFailure(t *testing.T) {
	app, planPath, cfgPath, _ := fixture(t, twoStepPlan)
	app.Agent = &agent.MockExecutor{ExitCode: 3, Output: "boom"}

	res := RunWithArgs(app, []string{"auto", planPath, "--config", cfgPath})
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, readStateFile(t, planPath), "lifecycle-error-1")
}

func TestExitError(t *testing.T) {
	err := NewExitError(3)
	assert.Equal(t, "exit status 3", err.Error())

	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 3, code)

	_, ok = IsExitError(os.ErrNotExist)
	assert.False(t, ok)
}
