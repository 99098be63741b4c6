package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/internal/jobmatch"
)

var hiringPlanCmd = &cobra.Command{
	Use:   "hiring-plan <job-description>",
	Short: "Draft a hiring plan for a job description",
	Long:  `Asks the model for a hiring plan. Prefix the argument with @ to read the job description from a file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHiringPlan,
}

var (
	interviewTitle  string
	interviewLevel  string
	interviewSkills string
	interviewCount  int
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Generate interview questions for a role",
	Args:  cobra.NoArgs,
	RunE:  runInterview,
}

func init() {
	interviewCmd.Flags().StringVarP(&interviewTitle, "title", "t", "", "job title (required)")
	interviewCmd.Flags().StringVarP(&interviewLevel, "level", "l", "", "experience level")
	interviewCmd.Flags().StringVarP(&interviewSkills, "skills", "s", "", "required skills")
	interviewCmd.Flags().IntVarP(&interviewCount, "count", "n", jobmatch.DefaultQuestionCount, "number of questions")
	rootCmd.AddCommand(hiringPlanCmd)
	rootCmd.AddCommand(interviewCmd)
}

func runHiringPlan(cmd *cobra.Command, args []string) error {
	jd, err := readArg(args[0])
	if err != nil {
		return err
	}
	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	plan, err := p.HiringPlan(cmd.Context(), jd)
	if err != nil {
		return fmt.Errorf("hiring plan: %w", err)
	}
	cmd.Println(plan)
	return nil
}

func runInterview(cmd *cobra.Command, _ []string) error {
	p, done, err := openPipeline()
	if err != nil {
		return err
	}
	defer done()

	out, err := p.InterviewQuestions(cmd.Context(), jobmatch.InterviewRequest{
		JobTitle:        interviewTitle,
		ExperienceLevel: interviewLevel,
		Skills:          interviewSkills,
		Count:           interviewCount,
	})
	if err != nil {
		return fmt.Errorf("interview questions: %w", err)
	}
	cmd.Println(out)
	return nil
}
