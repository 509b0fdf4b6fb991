package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"stagehand/internal/lifecycle"
	"stagehand/internal/state"
)

func newRunCommand(app *App) *cobra.Command {
	var stage int

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Advance one step through one lifecycle stage",
		Long: `Run selects the first step in plan order whose state satisfies the
requested stage's precondition (or is that stage's error state), performs
the stage action, runs the gates, and records the result. Without --stage
the lowest stage with an eligible step is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planPath := args[0]

			sess, err := app.openSession(planPath)
			if err != nil {
				return err
			}
			defer sess.close()

			runStage := stage
			if runStage == 0 {
				_, next, ok := sess.engine.NextEligible()
				if !ok {
					sess.printer.Step("nothing to do: no step is eligible for any stage")
					return nil
				}
				runStage = next
			}

			res, err := sess.engine.RunStage(cmd.Context(), runStage)
			if err != nil {
				return err
			}
			if res.Outcome == lifecycle.NoEligibleStep {
				sess.printer.Step("nothing to do: no step is eligible for stage %d", runStage)
			}
			return exitFromResult(res)
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 0, "lifecycle stage to run ("+
		strconv.Itoa(state.MinStage)+".."+strconv.Itoa(state.MaxStage)+", default: lowest eligible)")
	return cmd
}

// exitFromResult maps an engine result to the command's error return. A
// failed stage exits 1; advancing or finding nothing eligible exits 0.
func exitFromResult(res lifecycle.Result) error {
	if res.Outcome == lifecycle.Failed {
		return NewExitError(1)
	}
	return nil
}
