package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/prismblog"
	"github.com/eringen/prismblog/listing"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate the home listing once and persist it",
	Long:  "build fetches the first listing page and stores it as the home page snapshot. It fails when the listing cannot be fetched.",
	RunE:  buildAction,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func buildAction(cmd *cobra.Command, _ []string) error {
	cfg, err := prismblog.LoadConfig(configPath)
	if err != nil {
		return err
	}
	app := prismblog.New(cfg)
	defer func() { _ = app.Close() }()

	page, err := app.Build(cmd.Context())
	if err != nil {
		var bfe *listing.BuildFetchError
		if errors.As(err, &bfe) {
			return fmt.Errorf("build aborted: %w", bfe)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "built listing: %d post(s), more pages: %t\n", len(page.Results), page.HasMore())
	return nil
}
