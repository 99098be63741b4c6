// Package jobmatch builds job comparison prompts and reads the score and
// sections back out of the model's free-form reply.
//
// Parsing is best effort. The grammar is:
//
//   - score: the first run of one to three digits followed by "/100" or "%"
//     (spaces allowed before either); 0 when absent.
//   - sections: the reply split on blank lines. When a score was found, the
//     block holding it is dropped. The first remaining block is the analysis
//     and the second the recommendations.
//   - fallback: with no score, or no block left after dropping it, the
//     analysis is the whole reply.
package jobmatch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	scoreRe = regexp.MustCompile(`(\d{1,3})\s*(?:/\s*100|%)`)
	blankRe = regexp.MustCompile(`\n[ \t]*\n`)
)

// Match is the parsed job comparison.
type Match struct {
	Score           int    `json:"score"`
	Analysis        string `json:"analysis"`
	Recommendations string `json:"recommendations"`
}

// Summary holds the resume sections compared against a job description.
type Summary struct {
	Skills     string
	Experience string
	Education  string
	Projects   string
}

// Parse extracts the score, analysis and recommendations from text.
func Parse(text string) Match {
	text = strings.TrimSpace(text)
	loc := scoreRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{Analysis: text}
	}

	var m Match
	m.Score, _ = strconv.Atoi(text[loc[2]:loc[3]])

	var rest []string
	start := 0
	for _, sep := range append(blankRe.FindAllStringIndex(text, -1), []int{len(text), len(text)}) {
		block := strings.TrimSpace(text[start:sep[0]])
		holdsScore := loc[0] >= start && loc[0] < sep[0]
		if block != "" && !holdsScore {
			rest = append(rest, block)
		}
		start = sep[1]
	}

	switch len(rest) {
	case 0:
		m.Analysis = text
	case 1:
		m.Analysis = rest[0]
	default:
		m.Analysis = rest[0]
		m.Recommendations = rest[1]
	}
	return m
}

const matchTemplate = `Compare the following resume summary with the job description:

Resume Summary:
Skills: %s
Experience: %s
Education: %s
Projects: %s

Job Description:
%s

Provide:
1. A match score from 0-100 indicating how well the candidate matches the job requirements
2. A brief analysis of the match, highlighting strengths and gaps
3. Recommendations for the candidate to improve their match for this position`

// Prompt renders the comparison prompt for a resume summary and job description.
func Prompt(s Summary, jobDescription string) string {
	return fmt.Sprintf(matchTemplate, s.Skills, s.Experience, s.Education, s.Projects, strings.TrimSpace(jobDescription))
}

const hiringPlanTemplate = `Create a comprehensive hiring plan and job analysis report based on this job description:

%s

Format your response in these sections:
1. JOB OVERVIEW: A concise summary of the role and its importance to the organization
2. KEY RESPONSIBILITIES: 5-7 detailed bullet points of core duties
3. REQUIRED QUALIFICATIONS: 5-6 specific must-have qualifications
4. PREFERRED QUALIFICATIONS: 3-4 "nice-to-have" qualifications
5. HIRING PROCESS: Recommended interview process with assessment methods
6. CANDIDATE EVALUATION CRITERIA: Specific criteria for evaluating candidates
7. MARKET INSIGHTS: Salary range, talent pool availability, and hiring timeline
8. ONBOARDING PLAN: 30-60-90 day success metrics for the new hire`

// HiringPlanPrompt asks for a hiring plan for jobDescription.
func HiringPlanPrompt(jobDescription string) string {
	return fmt.Sprintf(hiringPlanTemplate, strings.TrimSpace(jobDescription))
}

// DefaultQuestionCount is used when an InterviewRequest has no count.
const DefaultQuestionCount = 10

// InterviewRequest describes the interview questions to generate.
type InterviewRequest struct {
	JobTitle        string `validate:"required"`
	ExperienceLevel string
	Skills          string
	Count           int `validate:"gte=0,lte=50"`
}

const interviewTemplate = `Generate %d interview questions for a %s position
Experience level: %s
Required skills: %s

Format your response as a numbered list of questions, grouped into these categories:
- Technical Questions
- Behavioral Questions
- Problem-Solving Questions
- Culture Fit Questions

For each technical question, also provide an ideal answer or key points that should be covered in the response.`

// InterviewPrompt renders the interview question prompt.
func InterviewPrompt(r InterviewRequest) string {
	count := r.Count
	if count <= 0 {
		count = DefaultQuestionCount
	}
	level := strings.TrimSpace(r.ExperienceLevel)
	if level == "" {
		level = "Any"
	}
	skills := strings.TrimSpace(r.Skills)
	if skills == "" {
		skills = "General technical skills"
	}
	return fmt.Sprintf(interviewTemplate, count, strings.TrimSpace(r.JobTitle), level, skills)
}
