package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BarkinBalci/conversion-reporting-service/internal/queue"
	"github.com/BarkinBalci/conversion-reporting-service/internal/queue/sqs"
)

func enqueueCmd() *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:   "enqueue <key>",
		Short: "Publish an object-created notification so the consumer processes the object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := environment()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if bucket == "" {
				bucket = cfg.S3.Bucket
			}

			client, err := sqs.NewClient(cmd.Context(), cfg.SQS, log)
			if err != nil {
				return err
			}

			return enqueue(cmd.Context(), client, cmd.OutOrStdout(), bucket, args[0])
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket holding the object (defaults to S3_BUCKET)")
	return cmd
}

func enqueue(ctx context.Context, publisher queue.QueuePublisher, out io.Writer, bucket, key string) error {
	if err := publisher.PublishObjectCreated(ctx, bucket, key); err != nil {
		return fmt.Errorf("failed to enqueue s3://%s/%s: %w", bucket, key, err)
	}
	fmt.Fprintf(out, "enqueued s3://%s/%s\n", bucket, key)
	return nil
}
