package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ExecuteResult is the outcome of a CLI invocation, for tests.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "stagehand",
		Short: "Advance plan steps through the implementation lifecycle",
		Long: `Stagehand drives the steps of a numbered plan file through a fixed
lifecycle:

  planned -> implemented -> implemented-checked -> implemented-tested ->
  implemented-finalized -> implemented-committed

Each stage runs an agent action (or, for the final stage, a git commit)
followed by the lint/build/test gates. Failures park the step in
lifecycle-error-<n>; the next run of stage n retries it. State persists in
.stagehand/state.yaml next to the plan, so interrupted sessions resume.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default: stagehand.yaml on the search path)")
	root.PersistentFlags().StringVar(&app.statePath, "state", "", "state file (default: .stagehand/state.yaml next to the plan)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "show agent tool activity and gate detail")

	root.AddCommand(
		newRunCommand(app),
		newAutoCommand(app),
		newStatusCommand(app),
		newNextCommand(app),
	)
	return root
}

// RunWithArgs executes the CLI against args and returns the result instead
// of exiting. This is the entry point tests use.
func RunWithArgs(app *App, args []string) ExecuteResult {
	root := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stdout)

	if err := root.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		errOut := app.Stdout
		if errOut == nil {
			errOut = os.Stderr
		}
		fmt.Fprintf(errOut, "stagehand: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute runs the CLI with os.Args and exits the process on failure.
func Execute() {
	result := RunWithArgs(NewApp(), os.Args[1:])
	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
}
