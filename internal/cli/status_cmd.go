package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stagehand/internal/state"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <plan-file>",
		Short: "Show every step's lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.openSession(args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			w := tabwriter.NewWriter(app.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tSTATE\tPROGRESS\tTEXT")
			for _, row := range sess.engine.StatusRows() {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n",
					row.ID, row.State, row.State.Rank(), state.MaxStage, row.Text)
			}
			return w.Flush()
		},
	}
}
