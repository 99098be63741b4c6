package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/tui"
)

var (
	askJSON   bool
	askStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask <pdf> <question>",
	Short: "Answer one question about a PDF",
	Long: `Answers a single question from the content of a PDF and lists the pages
the answer was drawn from. With --json the full result is printed, including
the retrieved passages under raw_result.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "also stream a restatement of the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	path, question := args[0], args[1]

	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	res := p.Answer(ctx, path, question)

	if askJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		if !res.OK() {
			return errReported
		}
		return nil
	}

	if !res.OK() {
		return errors.New(res.Message)
	}
	out := cmd.OutOrStdout()
	tui.PrintAnswer(out, res.Answer, res.Sources)
	if askStream {
		cmd.Println()
		if err := p.Stream(ctx, question, res.Answer, out); err != nil {
			logger.Warn("stream failed", "err", err)
		}
		cmd.Println()
	}
	return nil
}
