package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pdfrag/internal/jobmatch"
)

// Category is one fixed question asked of every resume.
type Category struct {
	Name     string
	Question string
}

// Categories are answered in this order by AnalyzeResume.
var Categories = []Category{
	{"skills", "What are the key skills mentioned in this resume?"},
	{"experience", "Summarize the work experience in this resume."},
	{"education", "What is the educational background in this resume?"},
	{"projects", "What projects are mentioned in this resume?"},
	{"summary", "Provide a concise professional summary of this candidate based on the resume."},
}

// Section is the answer for one category.
type Section struct {
	Category string   `json:"category"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	// Failed marks answers that carry an error description.
	Failed bool `json:"failed,omitempty"`
}

// ResumeReport is the per-category analysis of a resume, with an optional
// comparison against a job description.
type ResumeReport struct {
	Status   Status          `json:"status"`
	Sections []Section       `json:"sections"`
	JobMatch *jobmatch.Match `json:"job_match,omitempty"`
}

// Section returns the section for category, if present.
func (r ResumeReport) Section(category string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Category == category {
			return s, true
		}
	}
	return Section{}, false
}

// AnalyzeResume answers every category question. A failed category becomes
// an error answer and the others still run. When jobDescription is set the
// answers are compared against it.
func (p *Pipeline) AnalyzeResume(ctx context.Context, path, jobDescription string) ResumeReport {
	ctx, span := tracer.Start(ctx, "pipeline.analyze_resume")
	defer span.End()

	report := ResumeReport{Status: StatusSuccess, Sections: make([]Section, 0, len(Categories))}
	for _, c := range Categories {
		res := p.Answer(ctx, path, c.Question)
		if !res.OK() {
			report.Sections = append(report.Sections, Section{
				Category: c.Name,
				Answer:   fmt.Sprintf("Error analyzing %s: %s", c.Name, res.Message),
				Sources:  []string{},
				Failed:   true,
			})
			continue
		}
		report.Sections = append(report.Sections, Section{Category: c.Name, Answer: res.Answer, Sources: res.Sources})
	}

	if strings.TrimSpace(jobDescription) == "" {
		return report
	}
	answer := func(name string) string {
		s, _ := report.Section(name)
		return s.Answer
	}
	summary := jobmatch.Summary{
		Skills:     answer("skills"),
		Experience: answer("experience"),
		Education:  answer("education"),
		Projects:   answer("projects"),
	}
	m, err := p.MatchJob(ctx, path, summary, jobDescription)
	if err != nil {
		p.logger.Warn("job match failed", "document", path, "err", err)
	}
	report.JobMatch = &m
	return report
}

// MatchJob sends the comparison prompt through the answering pipeline for
// path and parses the reply. On failure the zero Match is returned with the error.
func (p *Pipeline) MatchJob(ctx context.Context, path string, summary jobmatch.Summary, jobDescription string) (jobmatch.Match, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return jobmatch.Match{}, errors.New("job description is required")
	}
	res := p.Answer(ctx, path, jobmatch.Prompt(summary, jobDescription))
	if !res.OK() {
		return jobmatch.Match{}, errors.New(res.Message)
	}
	return jobmatch.Parse(res.Answer), nil
}

// HiringPlan asks the model for a hiring plan. No document is involved.
func (p *Pipeline) HiringPlan(ctx context.Context, jobDescription string) (string, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return "", errors.New("job description is required")
	}
	return p.generate(ctx, "pipeline.hiring_plan", jobmatch.HiringPlanPrompt(jobDescription))
}

// InterviewQuestions asks the model for interview questions.
func (p *Pipeline) InterviewQuestions(ctx context.Context, req jobmatch.InterviewRequest) (string, error) {
	if err := p.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid interview request: %w", err)
	}
	if strings.TrimSpace(req.JobTitle) == "" {
		return "", errors.New("job title is required")
	}
	return p.generate(ctx, "pipeline.interview_questions", jobmatch.InterviewPrompt(req))
}
