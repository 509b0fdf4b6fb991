// Package vcs is the version-control collaborator interface.
//
// The lifecycle engine consumes two capabilities: inspecting the pending
// change set (stage 2's diff review) and recording a checkpoint commit
// (stage 5). Both are blocking child-process git invocations with captured
// output; the engine reacts only to success/failure and the text.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CommitError wraps a failed checkpoint, carrying the captured git output.
type CommitError struct {
	Output string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// IsCommitError reports whether err is (or wraps) a [CommitError].
func IsCommitError(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce)
}

// Git exposes the version-control operations the lifecycle engine needs.
type Git interface {
	// PendingChanges returns the working-tree diff against HEAD.
	PendingChanges(ctx context.Context) (string, error)

	// StageAllAndCommit stages everything and records a checkpoint commit
	// with the given message, returning the captured output. Failures are
	// [CommitError]s so callers can surface the output.
	StageAllAndCommit(ctx context.Context, message string) (string, error)
}

// CLIGit implements [Git] by running the git binary in a working directory.
type CLIGit struct {
	workdir string
}

// NewCLIGit creates a CLIGit rooted at workdir.
func NewCLIGit(workdir string) *CLIGit {
	return &CLIGit{workdir: workdir}
}

// PendingChanges runs `git diff` and returns its output.
func (g *CLIGit) PendingChanges(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "diff")
	if err != nil {
		return "", fmt.Errorf("failed to inspect pending changes: %w", err)
	}
	return out, nil
}

// StageAllAndCommit runs `git add -A` then `git commit -m <message>`.
func (g *CLIGit) StageAllAndCommit(ctx context.Context, message string) (string, error) {
	addOut, err := g.run(ctx, "add", "-A")
	if err != nil {
		return "", &CommitError{Output: addOut, Err: err}
	}
	commitOut, err := g.run(ctx, "commit", "-m", message)
	combined := addOut + commitOut
	if err != nil {
		return "", &CommitError{Output: combined, Err: err}
	}
	return combined, nil
}

func (g *CLIGit) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workdir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// WriteDiffFile writes the pending diff to a temp file and returns its
// path. Stage prompts reference the file so the agent reviews exactly the
// change set under consideration. Callers remove the file after a
// successful stage.
func WriteDiffFile(ctx context.Context, g Git) (string, error) {
	diff, err := g.PendingChanges(ctx)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("stagehand-diff-%d.patch", time.Now().UnixMilli())
	path := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(path, []byte(diff), 0644); err != nil {
		return "", fmt.Errorf("failed to write diff file: %w", err)
	}
	return path, nil
}
