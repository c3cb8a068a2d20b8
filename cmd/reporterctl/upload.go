package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
	s3storage "github.com/BarkinBalci/conversion-reporting-service/internal/storage/s3"
)

type uploadOptions struct {
	bucket  string
	module  string
	network string
	job     string
	account string
}

func uploadCmd() *cobra.Command {
	opts := uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a JSON array of conversion records under the network folder layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecordsFile(args[0])
			if err != nil {
				return err
			}

			cfg, log, err := environment()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			client, err := s3storage.NewClient(cmd.Context(), cfg.S3, log)
			if err != nil {
				return err
			}

			bucket := opts.bucket
			if bucket == "" {
				bucket = cfg.S3.UploadBucket
			}

			key := opts.objectKey(time.Now())
			if err := client.PutJSON(cmd.Context(), bucket, key, records); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d records to s3://%s/%s\n", len(records), bucket, key)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "Target bucket (defaults to S3_UPLOAD_BUCKET)")
	cmd.Flags().StringVar(&opts.module, "module", "networks", "Module folder")
	cmd.Flags().StringVar(&opts.network, "network", "", "Network folder (tonic, sedo, crossroads)")
	cmd.Flags().StringVar(&opts.job, "job", "", "Job folder")
	cmd.Flags().StringVar(&opts.account, "account", "", "Account folder")
	_ = cmd.MarkFlagRequired("network")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

// objectKey names the upload after its UTC timestamp
func (o uploadOptions) objectKey(at time.Time) string {
	folder := fmt.Sprintf("%s/%s/%s/%s", o.module, domain.ParseNetwork(o.network), o.job, o.account)
	return s3storage.FolderKey(folder, at.UTC().Format("2006-01-02T15:04:05.000Z"), at)
}

// readRecordsFile checks that path holds a JSON array and returns its elements untouched
func readRecordsFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array of records: %w", path, err)
	}
	return records, nil
}
