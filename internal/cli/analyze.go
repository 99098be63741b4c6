package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	analyzeJD   string
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pdf>",
	Short: "Analyze a resume PDF",
	Long: `Answers the fixed resume questions (skills, experience, education, projects,
summary) about a PDF. With --job-description the answers are also scored
against the job; prefix the value with @ to read it from a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeJD, "job-description", "j", "", "job description text, or @file")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

// readArg returns v, or the contents of the named file when v starts with @.
func readArg(v string) (string, error) {
	name, ok := strings.CutPrefix(v, "@")
	if !ok {
		return v, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jd, err := readArg(analyzeJD)
	if err != nil {
		return err
	}

	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	report := p.AnalyzeResume(cmd.Context(), args[0], jd)

	if analyzeJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for i, s := range report.Sections {
		if i > 0 {
			cmd.Println()
		}
		cmd.Printf("== %s ==\n", strings.ToUpper(s.Category[:1])+s.Category[1:])
		cmd.Println(s.Answer)
		if len(s.Sources) > 0 {
			cmd.Printf("Sources: %s\n", strings.Join(s.Sources, ", "))
		}
	}
	if m := report.JobMatch; m != nil {
		cmd.Println()
		cmd.Println("== Job Match ==")
		cmd.Printf("Match score: %d/100\n", m.Score)
		cmd.Printf("Analysis: %s\n", m.Analysis)
		if m.Recommendations != "" {
			cmd.Printf("Recommendations: %s\n", m.Recommendations)
		}
	}
	return nil
}
