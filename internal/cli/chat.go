package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pdfrag/internal/tui"
	"pdfrag/internal/watch"
)

var (
	chatWatch  bool
	chatStream bool
)

// stdinIsTerminal decides between the TUI and the line loop.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

var chatCmd = &cobra.Command{
	Use:   "chat <pdf>",
	Short: "Start an interactive question session about a PDF",
	Long: `Indexes the PDF (or loads the cached index) and starts a question session.

On a terminal this opens the interactive UI; otherwise questions are read one
per line from standard input. Type exit, quit or q to leave.

Controls:
  Enter    - Ask
  Tab      - Show the passages behind the last answer
  ↑/↓      - Browse passages
  Ctrl+C   - Quit`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatWatch, "watch", "w", false, "rebuild the index when the PDF changes")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "stream answers as they are generated")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}

	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cmd.PrintErrln("Processing PDF...")
	if err := p.Prepare(ctx, path); err != nil {
		return fmt.Errorf("prepare %s: %w", filepath.Base(path), err)
	}
	overview, err := p.Overview(ctx, path, 0)
	if err != nil {
		logger.Warn("overview failed", "err", err)
	}

	if !stdinIsTerminal() {
		if chatWatch {
			startWatch(ctx, path, func(err error) {
				if err != nil {
					logger.Warn("reindex failed", "err", err)
					return
				}
				logger.Info("document changed, index rebuilt", "document", path)
			}, p.Rebuild)
		}
		return tui.RunLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), p, path, chatStream)
	}

	prog := tea.NewProgram(tui.New(ctx, p, path, overview, chatStream), tea.WithAltScreen(), tea.WithContext(ctx))
	if chatWatch {
		startWatch(ctx, path, func(err error) { prog.Send(tui.ReindexedMsg{Err: err}) }, p.Rebuild)
	}
	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// startWatch rebuilds the index whenever path changes, reporting each
// outcome to notify, until ctx is done.
func startWatch(ctx context.Context, path string, notify func(error), rebuild func(context.Context, string) error) {
	go func() {
		err := watch.File(ctx, path, watch.DefaultDebounce, logger, func() {
			notify(rebuild(ctx, path))
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("watch stopped", "document", path, "err", err)
		}
	}()
}
