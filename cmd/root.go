// Package cmd 命令行入口
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "potluck",
	Short: "RSS news aggregator with AI summaries",
	Long:  "Fetches RSS feeds, summarizes new articles with an LLM and serves them as a paginated JSON API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file (optional)")

	rootCmd.AddCommand(
		serveCmd(),
		ingestCmd(),
		snapshotCmd(),
		feedCmd(),
		llmCmd(),
		versionCmd(),
	)
}

// Execute 运行根命令
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "potluck %s\n", Version)
		},
	}
}
