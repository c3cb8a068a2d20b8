package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BarkinBalci/conversion-reporting-service/internal/app"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

func purgeCmd() *cobra.Command {
	var key domain.Key

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete a stored conversion so the next delivery reports it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Store.Delete(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", key)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&key.SessionID, "session", "", "Session id of the conversion")
	cmd.Flags().StringVar(&key.KeywordClicked, "keyword", "", "Keyword clicked of the conversion")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("keyword")

	return cmd
}
