package cli

import (
	"fmt"

	"github.com/alexanderramin/noise/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newTickCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one recommendation pass and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := g.openApp(ctx, discordOrConsole(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer closeApp(ctx, app)

			n := app.Scheduler.Tick(ctx)
			stop := formatter.StartSpinner(cmd.ErrOrStderr(), "waiting for recommendation runs")
			err = app.Tasks.Drain(ctx)
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "dispatched %d recommendation run(s)\n", n)
			return nil
		},
	}
}
