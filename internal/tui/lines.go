package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PrintAnswer writes an answer and its page sources in the plain-text layout
// shared by the line loop and the ask command.
func PrintAnswer(w io.Writer, answer string, sources []string) {
	fmt.Fprintf(w, "\nAnswer: %s\n", answer)
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(w, "- %s\n", s)
	}
}

// RunLines is the non-interactive fallback: one question per input line
// until EOF or an exit word. Failed questions are reported and the loop
// continues.
func RunLines(ctx context.Context, in io.Reader, out io.Writer, asker Asker, path string, stream bool) error {
	fmt.Fprintln(out, "Ready! Ask questions about your PDF (type 'exit' to quit)")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nYour question: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		if q == "" {
			continue
		}
		if isExit(q) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res := asker.Answer(ctx, path, q)
		if !res.OK() {
			fmt.Fprintf(out, "Error: %s\n", res.Message)
			continue
		}
		PrintAnswer(out, res.Answer, res.Sources)
		if stream {
			fmt.Fprintln(out)
			if err := asker.Stream(ctx, q, res.Answer, out); err != nil {
				fmt.Fprintf(out, "\n(stream interrupted: %v)", err)
			}
			fmt.Fprintln(out)
		}
	}
}
