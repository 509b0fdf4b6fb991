package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"stagehand/internal/config"
)

// Request is one agent invocation: the prompt context and the model to use.
type Request struct {
	Prompt string
	Model  string
}

// InvokeResult is the outcome of one agent invocation. Success iff
// ExitCode is zero; Output is the collected assistant text.
type InvokeResult struct {
	ExitCode int
	Output   string
}

// Success reports whether the invocation succeeded.
func (r *InvokeResult) Success() bool {
	return r.ExitCode == 0
}

// EventHandler receives parsed events as they stream, for live display.
type EventHandler func(Event)

// Executor invokes the code-generation agent. Implementations must be
// synchronous: Invoke returns only after the agent process has exited.
type Executor interface {
	Invoke(ctx context.Context, req Request, handler EventHandler) (*InvokeResult, error)
}

// CLIExecutor implements [Executor] by spawning the configured agent binary
// and parsing its stream-json output.
type CLIExecutor struct {
	cfg    config.AgentConfig
	parser *Parser

	// Workdir is the directory the agent runs in. Empty means inherited.
	Workdir string
}

// NewCLIExecutor creates a CLIExecutor for the configured agent binary.
func NewCLIExecutor(cfg config.AgentConfig, workdir string) *CLIExecutor {
	return &CLIExecutor{
		cfg:     cfg,
		parser:  NewParser(),
		Workdir: workdir,
	}
}

// Invoke spawns the agent, streams parsed events to the handler, and
// returns the collected text and exit code. A non-zero exit is not an
// error here - callers decide how to react to failed invocations.
func (e *CLIExecutor) Invoke(ctx context.Context, req Request, handler EventHandler) (*InvokeResult, error) {
	args := append([]string{}, e.cfg.ExtraArgs...)
	args = append(args,
		"--dangerously-skip-permissions",
		"-p", req.Prompt,
		"--output-format", e.cfg.OutputFormat,
		"--model", req.Model,
	)

	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, args...)
	cmd.Dir = e.Workdir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent %s: %w", e.cfg.BinaryPath, err)
	}

	// stderr is not part of the event stream; collect it separately so a
	// failing agent still surfaces something readable.
	stderrCh := make(chan string, 1)
	go func() {
		var b strings.Builder
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			b.WriteString(scanner.Text())
			b.WriteByte('\n')
		}
		stderrCh <- b.String()
	}()

	var text strings.Builder
	for event := range e.parser.Parse(stdout) {
		if event.IsText() {
			text.WriteString(event.Text)
			text.WriteByte('\n')
		}
		if handler != nil {
			handler(event)
		}
	}

	// The parser stops early when a line exceeds its buffer cap. Drain the
	// rest of the pipe so a still-writing agent cannot block on it and
	// stall Wait.
	io.Copy(io.Discard, stdout)

	stderrText := <-stderrCh
	err = cmd.Wait()

	result := &InvokeResult{Output: text.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("agent invocation failed: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	if !result.Success() && strings.TrimSpace(result.Output) == "" {
		result.Output = stderrText
	}
	return result, nil
}
