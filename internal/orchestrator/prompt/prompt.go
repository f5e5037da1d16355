// Package prompt renders the instruction text handed to the agent for one task.
// Every function here is pure: identical input yields identical output.
package prompt

import (
	"fmt"
	"strings"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// Task is the part of a task the prompt needs.
type Task struct {
	Title       string
	Description string
}

// Context locates the task inside its run. Index is zero based.
type Context struct {
	ProjectName string
	WorkDir     string
	Index       int
	Total       int
}

// Build renders the prompt for mode. Anything other than research is a build prompt.
func Build(mode v1.Mode, task Task, pc Context) string {
	if mode == v1.ModeResearch {
		return BuildResearch(task, pc)
	}
	return BuildTask(task, pc)
}

// BuildTask renders a build-mode prompt. The working directory must already exist.
func BuildTask(task Task, pc Context) string {
	sections := []string{
		fmt.Sprintf("You are an AI agent executing task %d of %d for the project %q.", pc.Index+1, pc.Total, pc.ProjectName),
		strings.Join([]string{
			"## Working Directory",
			fmt.Sprintf("Your working directory is: %s", pc.WorkDir),
			"Every file you create or modify MUST be inside this directory. Do not read, write, or run anything outside of it.",
		}, "\n"),
		"## Task: " + task.Title,
		task.Description,
		strings.Join([]string{
			"## Instructions",
			"- Carry out the task completely.",
			"- Write production-quality code for any file you create.",
			"- Double check any configuration you touch.",
			"- Finish with a short summary of what you did.",
			fmt.Sprintf("- All work must stay within %s.", pc.WorkDir),
		}, "\n"),
	}
	return joinSections(sections)
}

// ResearchSections are the headings a research answer must contain, in order.
var ResearchSections = []string{"Summary", "Key Findings", "Details", "Sources"}

// BuildResearch renders a research-mode prompt whose answer is stored verbatim as markdown.
func BuildResearch(task Task, pc Context) string {
	sections := []string{
		fmt.Sprintf("You are a research agent executing research task %d of %d for the project %q.", pc.Index+1, pc.Total, pc.ProjectName),
		"## Research Topic: " + task.Title,
		task.Description,
		strings.Join([]string{
			"## Instructions",
			"Research this topic thoroughly with the web search and web fetch tools.",
			"Your final response MUST be well-structured markdown containing exactly these sections:",
		}, "\n"),
		"## Summary\nA concise overview of the findings in two or three paragraphs.",
		strings.Join([]string{
			"## Key Findings",
			"- The most important discoveries as bullet points",
			"- Specific data, statistics, or facts where available",
			"- Emerging trends or patterns",
		}, "\n"),
		"## Details\nDeeper analysis organised into subsections. Use headers, lists, and tables where they help.",
		"## Sources\nThe key sources you consulted, each with a short note on what it contributed.",
		strings.Join([]string{
			"## Important Guidelines",
			"- Prefer accurate and recent information",
			"- Cite a source for every claim",
			"- Include code examples, specifications, or technical details when relevant",
			"- Your whole final response is saved as the research result, so make it complete",
		}, "\n"),
	}
	return joinSections(sections)
}

func joinSections(sections []string) string {
	kept := sections[:0:0]
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}
