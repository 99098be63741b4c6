package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached document indexes",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <pdf>",
	Short: "Remove the cached index of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, done, err := openPipeline()
		if err != nil {
			return err
		}
		defer done()

		if err := p.Invalidate(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		cmd.Printf("Cleared cached index for %s\n", args[0])
		return nil
	},
}

var cacheRebuildCmd = &cobra.Command{
	Use:   "rebuild <pdf>",
	Short: "Re-index a PDF and replace its cached index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, done, err := openPipeline()
		if err != nil {
			return err
		}
		defer done()

		if err := p.Rebuild(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		cmd.Printf("Rebuilt index for %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheRebuildCmd)
	rootCmd.AddCommand(cacheCmd)
}
