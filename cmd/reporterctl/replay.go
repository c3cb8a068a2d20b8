package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BarkinBalci/conversion-reporting-service/internal/app"
	"github.com/BarkinBalci/conversion-reporting-service/internal/reporter"
)

func replayCmd() *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:   "replay <key>",
		Short: "Run the reporting pipeline on one object without going through the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				ref := reporter.ObjectRef{Bucket: bucket, Key: args[0]}
				if ref.Bucket == "" {
					ref.Bucket = a.Config.S3.Bucket
				}

				summary, err := a.Orchestrator.ProcessObject(cmd.Context(), ref)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"read=%d unsubscribed=%d duplicates=%d invalid=%d reported=%d failed=%d\n",
					summary.Read, summary.Unsubscribed, summary.Duplicates, summary.Invalid, summary.Reported, summary.Failed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket holding the object (defaults to S3_BUCKET)")
	return cmd
}
