package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BarkinBalci/conversion-reporting-service/internal/app"
)

func optimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize [table...]",
		Short: "Merge ClickHouse table parts so replaced conversion versions are collapsed",
		Long: `Runs OPTIMIZE TABLE <table> FINAL for each table. Without arguments the
configured conversions table is optimized. Intended to be triggered on a schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if a.Optimizer == nil {
					return errors.New("optimize requires the clickhouse store backend")
				}

				tables := args
				if len(tables) == 0 {
					tables = []string{a.Config.Reporter.ConversionsTable}
				}

				for _, table := range tables {
					if err := a.Optimizer.OptimizeTable(cmd.Context(), table); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "optimized %s\n", table)
				}
				return nil
			})
		},
	}
}
