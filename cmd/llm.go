package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func llmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "LLM provider utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Send a test prompt to the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.llm.Configured() {
				return errors.New("LLM is not configured: set DEEPSEEK_API_KEY or llm.api_key")
			}
			reply, err := a.llm.TestConnection(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.cfg.LLM.Model, reply)
			return nil
		},
	})
	return cmd
}
