package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNextCommand(app *App) *cobra.Command {
	var stage int

	cmd := &cobra.Command{
		Use:   "next <plan-file>",
		Short: "Show which step and stage a run would pick up",
		Long: `Next previews step selection without mutating anything. Without --stage
it reports the lowest stage that has an eligible step; with --stage it
reports which step that stage would select.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.openSession(args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			if stage != 0 {
				step, ok := sess.engine.SelectFor(stage)
				if ok {
					fmt.Fprintf(app.Stdout, "stage %d would select step %s: %s\n", stage, step.ID, step.Text)
					return nil
				}
				fmt.Fprintf(app.Stdout, "stage %d has no eligible step\n", stage)
				return nil
			}

			step, nextStage, ok := sess.engine.NextEligible()
			if !ok {
				fmt.Fprintln(app.Stdout, "nothing eligible: all steps committed")
				return nil
			}
			fmt.Fprintf(app.Stdout, "step %s at stage %d: %s\n", step.ID, nextStage, step.Text)
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 0, "preview selection for a specific stage")
	return cmd
}
