package cmd

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"potluck/internal/model"
	"potluck/internal/service"
)

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Manage RSS feeds",
	}
	cmd.AddCommand(feedAddCmd(), feedListCmd(), feedToggleCmd("enable", true), feedToggleCmd("disable", false))
	return cmd
}

func feedAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedURL := strings.TrimSpace(args[0])
			if err := service.ValidateFeedURL(feedURL); err != nil {
				return err
			}
			if name == "" {
				name = defaultFeedName(feedURL)
			}

			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			feed := &model.Feed{URL: feedURL, Name: name, IsActive: true}
			if err := a.store.CreateFeed(cmd.Context(), feed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", feed.Name, feed.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the host)")
	return cmd
}

func feedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			feeds, err := a.store.ListFeeds(cmd.Context())
			if err != nil {
				return err
			}

			if len(feeds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no feeds configured")
				return nil
			}
			renderFeeds(cmd.OutOrStdout(), feeds)
			return nil
		},
	}
}

// renderFeeds 以表格形式输出订阅源
func renderFeeds(out io.Writer, feeds []model.Feed) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Active", "URL"})
	for _, f := range feeds {
		t.AppendRow(table.Row{f.ID, f.Name, f.IsActive, f.URL})
	}
	t.Render()
}

func feedToggleCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.SetFeedActive(cmd.Context(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", use, args[0])
			return nil
		},
	}
}

func defaultFeedName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
