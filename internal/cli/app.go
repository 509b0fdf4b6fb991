// Package cli is the command surface: run, auto, status, and next.
//
// Commands are thin. Each one loads the plan and its sidecar state, wires a
// [lifecycle.Engine] with production collaborators, and translates the
// engine's result into an exit code. Collaborators are injectable through
// [App] so command tests run against mocks without spawning processes.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stagehand/internal/agent"
	"stagehand/internal/config"
	"stagehand/internal/gate"
	"stagehand/internal/lifecycle"
	"stagehand/internal/logging"
	"stagehand/internal/output"
	"stagehand/internal/plan"
	"stagehand/internal/state"
	"stagehand/internal/vcs"
)

// stateDirName is the per-plan directory holding state.yaml and the run log.
const stateDirName = ".stagehand"

// App holds the command-level wiring and flag values.
//
// The zero value wires production collaborators; tests override Stdout,
// Agent, and Git before calling [RunWithArgs].
type App struct {
	// Stdout receives all command output. Nil means os.Stdout.
	Stdout io.Writer

	// Agent overrides the production executor when set, for tests.
	Agent agent.Executor

	// Git overrides the production git binding when set, for tests.
	Git vcs.Git

	// Persistent flag values, bound in newRootCommand.
	configPath string
	statePath  string
	verbose    bool
}

// NewApp creates an App with production defaults.
func NewApp() *App {
	return &App{Stdout: os.Stdout}
}

// session is one command's fully wired engine plus the resources it owns.
type session struct {
	engine  *lifecycle.Engine
	printer *output.Printer
	log     *logging.Logger
}

func (s *session) close() {
	if s.log != nil {
		s.log.Close()
	}
}

// stateDir returns the directory holding the plan's state file and run log.
func (a *App) stateDir(planPath string) string {
	if a.statePath != "" {
		return filepath.Dir(a.statePath)
	}
	return filepath.Join(filepath.Dir(planPath), stateDirName)
}

// loadConfig loads the explicit config file when --config was given,
// otherwise the usual search path with env overrides.
func (a *App) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if a.configPath != "" {
		return loader.LoadFromFile(a.configPath)
	}
	return loader.Load()
}

// openSession loads the plan, syncs its sidecar, loads state, and wires the
// engine. The gate pipeline, agent, and git all run in the plan's directory,
// which is the repository being worked on.
func (a *App) openSession(planPath string) (*session, error) {
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	p, err := plan.Load(planPath)
	if err != nil {
		return nil, err
	}
	if _, err := plan.SyncSteps(planPath, p); err != nil {
		return nil, fmt.Errorf("failed to sync step cache: %w", err)
	}

	statePath := a.statePath
	if statePath == "" {
		statePath = filepath.Join(a.stateDir(planPath), "state.yaml")
	}
	store, err := state.Load(statePath)
	if err != nil {
		return nil, err
	}

	workdir := filepath.Dir(planPath)

	git := a.Git
	if git == nil {
		git = vcs.NewCLIGit(workdir)
	}
	executor := a.Agent
	if executor == nil {
		executor = agent.NewCLIExecutor(cfg.Agent, workdir)
	}

	printer := output.NewPrinterWithWriter(a.Stdout)
	printer.SetVerbose(a.verbose)

	log := logging.New(a.stateDir(planPath), a.verbose)

	engine := lifecycle.New(lifecycle.Deps{
		Config:   cfg,
		Plan:     p,
		PlanPath: planPath,
		Store:    store,
		Agent:    executor,
		Git:      git,
		Gates:    gate.FromConfig(cfg.Gates, workdir),
		Printer:  printer,
		Log:      log,
	})
	return &session{engine: engine, printer: printer, log: log}, nil
}
