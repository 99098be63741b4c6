package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarySentences int

var summaryCmd = &cobra.Command{
	Use:   "summary <pdf>",
	Short: "Print an extractive summary of a PDF",
	Long: `Prints the most representative sentences of the document. No model is
called; the sentences are picked by word frequency over the indexed passages.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().IntVarP(&summarySentences, "sentences", "n", 3, "number of sentences")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	text, err := p.Overview(cmd.Context(), args[0], summarySentences)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", args[0], err)
	}
	if text == "" {
		cmd.Println("No summary available.")
		return nil
	}
	cmd.Println(text)
	return nil
}
