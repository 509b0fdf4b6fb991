// Package gate runs the verification pipeline that protects every lifecycle
// transition.
//
// A [Pipeline] is an ordered sequence of [Check] values, fixed at
// {lint, build, test}. The pipeline never short-circuits: every check runs
// even after an earlier failure, so the caller sees every broken thing at
// once instead of fixing them one run at a time. Captured output from
// failing checks is surfaced verbatim.
//
// The test check additionally implements [TestCounter], exposing the test
// count the lifecycle engine needs for its no-silent-test-deletion rule.
package gate

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"stagehand/internal/config"
)

// CheckResult is the outcome of a single verification check.
type CheckResult struct {
	Name   string
	Passed bool
	Output string
}

// GateResult is the outcome of one pipeline run: the ordered per-check
// results. Overall pass iff every check passed.
type GateResult struct {
	Results []CheckResult
}

// Passed reports whether every check passed.
func (r GateResult) Passed() bool {
	for _, c := range r.Results {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailureOutput concatenates the captured output of every failing check,
// each preceded by its check name.
func (r GateResult) FailureOutput() string {
	var b strings.Builder
	for _, c := range r.Results {
		if c.Passed {
			continue
		}
		fmt.Fprintf(&b, "gate %s failed:\n%s\n", c.Name, strings.TrimRight(c.Output, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Check executes one external verification command.
type Check interface {
	Name() string
	Run(ctx context.Context) CheckResult
}

// TestCounter exposes the test-count signal used by the lifecycle engine's
// no-silent-test-deletion rule.
type TestCounter interface {
	CountTests(ctx context.Context) (int, error)
}

// Pipeline is an ordered sequence of checks.
type Pipeline struct {
	checks []Check
}

// NewPipeline creates a pipeline that runs the given checks in order.
func NewPipeline(checks ...Check) *Pipeline {
	return &Pipeline{checks: checks}
}

// Run executes every check in order and returns the collected results.
// Failing checks do not stop later checks from running.
func (p *Pipeline) Run(ctx context.Context) GateResult {
	result := GateResult{Results: make([]CheckResult, 0, len(p.checks))}
	for _, c := range p.checks {
		result.Results = append(result.Results, c.Run(ctx))
	}
	return result
}

// TestCounter returns the first check that exposes a test count, if any.
func (p *Pipeline) TestCounter() (TestCounter, bool) {
	for _, c := range p.checks {
		if tc, ok := c.(TestCounter); ok {
			return tc, true
		}
	}
	return nil, false
}

// CommandCheck runs an external command and captures its combined output.
type CommandCheck struct {
	name    string
	command string
	args    []string
	workdir string
}

// NewCommandCheck creates a check that runs command with args in workdir.
func NewCommandCheck(name, command string, args []string, workdir string) *CommandCheck {
	return &CommandCheck{name: name, command: command, args: args, workdir: workdir}
}

// Name returns the check's label.
func (c *CommandCheck) Name() string { return c.name }

// Run executes the command synchronously and captures combined output.
func (c *CommandCheck) Run(ctx context.Context) CheckResult {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = c.workdir
	out, err := cmd.CombinedOutput()
	result := CheckResult{Name: c.name, Output: string(out)}
	if err != nil {
		if result.Output == "" {
			result.Output = err.Error()
		}
		return result
	}
	result.Passed = true
	return result
}

// TestCommandCheck is a [CommandCheck] that also exposes a test count by
// running a separate listing command and counting its non-empty output
// lines (e.g. `go test -list '.*' ./...`).
type TestCommandCheck struct {
	*CommandCheck
	countCommand string
	countArgs    []string
}

// NewTestCommandCheck creates the test check with its count command.
func NewTestCommandCheck(name, command string, args []string, countCommand string, countArgs []string, workdir string) *TestCommandCheck {
	return &TestCommandCheck{
		CommandCheck: NewCommandCheck(name, command, args, workdir),
		countCommand: countCommand,
		countArgs:    countArgs,
	}
}

// CountTests runs the count command and returns the number of non-empty
// lines it prints.
func (c *TestCommandCheck) CountTests(ctx context.Context) (int, error) {
	cmd := exec.CommandContext(ctx, c.countCommand, c.countArgs...)
	cmd.Dir = c.workdir
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("test count command failed: %w", err)
	}
	return countNonEmptyLines(string(out)), nil
}

func countNonEmptyLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// FromConfig builds the pipeline from configured gates, falling back to the
// built-in Go-toolchain defaults when the list is empty. Order in the
// config is preserved; the defaults run {lint, build, test}.
func FromConfig(cfgs []config.GateConfig, workdir string) *Pipeline {
	if len(cfgs) == 0 {
		cfgs = defaultGates()
	}
	checks := make([]Check, 0, len(cfgs))
	for _, gc := range cfgs {
		name := gc.Name
		if name == "" {
			name = gc.Command
		}
		if gc.CountCommand != "" {
			checks = append(checks, NewTestCommandCheck(name, gc.Command, gc.Args, gc.CountCommand, gc.CountArgs, workdir))
			continue
		}
		checks = append(checks, NewCommandCheck(name, gc.Command, gc.Args, workdir))
	}
	return NewPipeline(checks...)
}

func defaultGates() []config.GateConfig {
	return []config.GateConfig{
		{Name: "lint", Command: "go", Args: []string{"vet", "./..."}},
		{Name: "build", Command: "go", Args: []string{"build", "./..."}},
		{
			Name: "test", Command: "go", Args: []string{"test", "./..."},
			CountCommand: "go", CountArgs: []string{"test", "-list", ".*", "./..."},
		},
	}
}
