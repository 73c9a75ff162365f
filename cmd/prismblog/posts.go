package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/prismblog"
	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/listing"
	"github.com/eringen/prismblog/pagination"
)

var (
	postsLimit  int
	postsFormat string
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List posts by following the listing's pages",
	RunE:  postsAction,
}

func init() {
	postsCmd.Flags().IntVar(&postsLimit, "limit", 0, "stop after this many posts (0 = all)")
	postsCmd.Flags().StringVar(&postsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(postsCmd)
}

func postsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := prismblog.LoadConfig(configPath)
	if err != nil {
		return err
	}
	policy := content.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Content.MaxAttempts
	client, err := content.NewClient(content.Config{
		Endpoint:    cfg.Content.Endpoint,
		AccessToken: cfg.Content.AccessToken,
		Timeout:     cfg.Content.Timeout.Duration,
		UserAgent:   "prismblog/" + Version,
		Retry:       policy,
	})
	if err != nil {
		return err
	}

	loader := listing.NewLoader(client, cfg.Content.Type, cfg.Content.PageSize, cfg.Content.Orderings...)
	first, err := loader.Load(cmd.Context())
	if err != nil {
		return err
	}
	posts, err := pagination.Drain(cmd.Context(), pagination.NewSession(first, client), postsLimit)
	if err != nil {
		return err
	}

	switch postsFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(posts)
	case "terminal", "":
		printPosts(cmd.OutOrStdout(), posts)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", postsFormat)
	}
}

func printPosts(w io.Writer, posts []content.Post) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tPUBLISHED\tAUTHOR\tTITLE")
	for _, p := range posts {
		published := "-"
		if p.FirstPublicationDate != nil && !p.FirstPublicationDate.IsZero() {
			published = p.FirstPublicationDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.UID, published, p.Data.Author, p.Data.Title)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d post(s)\n", len(posts))
}
