package cli

import (
	"github.com/spf13/cobra"

	"stagehand/internal/lifecycle"
)

func newAutoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auto <plan-file>",
		Short: "Run stages until all steps are committed or one fails",
		Long: `Auto repeatedly runs the lowest stage that has an eligible step. All
steps clear a stage before any step enters the next one. The loop stops
when every step is committed, or at the first failure, leaving the failed
step in its lifecycle-error-<n> state for a later retry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.openSession(args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			results, err := sess.engine.RunAuto(cmd.Context())
			if err != nil {
				return err
			}
			if n := len(results); n > 0 && results[n-1].Outcome == lifecycle.Failed {
				return NewExitError(1)
			}
			return nil
		},
	}
}
