package prompt

import (
	"strings"
	"testing"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

func TestBuildTaskEmbedsWorkingDirectory(t *testing.T) {
	got := BuildTask(
		Task{Title: "Scaffold API", Description: "Create a gin server"},
		Context{ProjectName: "Shop", WorkDir: "/ws/shop", Index: 1, Total: 3},
	)

	for _, want := range []string{
		`task 2 of 3 for the project "Shop"`,
		"## Working Directory",
		"Your working directory is: /ws/shop",
		"MUST be inside this directory",
		"## Task: Scaffold API",
		"Create a gin server",
		"All work must stay within /ws/shop.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("build prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildResearchHasResponseContract(t *testing.T) {
	got := BuildResearch(
		Task{Title: "Vector DBs", Description: "Compare options"},
		Context{ProjectName: "Survey", Index: 0, Total: 1},
	)

	if !strings.Contains(got, "## Research Topic: Vector DBs") {
		t.Errorf("missing topic heading:\n%s", got)
	}
	if strings.Contains(got, "Working Directory") {
		t.Error("research prompt must not mention a working directory")
	}
	last := -1
	for _, section := range ResearchSections {
		idx := strings.Index(got, "## "+section+"\n")
		if idx < 0 {
			t.Fatalf("missing section %q", section)
		}
		if idx < last {
			t.Errorf("section %q out of order", section)
		}
		last = idx
	}
}

func TestBuildIsDeterministicAndDispatchesOnMode(t *testing.T) {
	task := Task{Title: "T", Description: "D"}
	pc := Context{ProjectName: "P", WorkDir: "/w", Index: 0, Total: 1}

	if Build(v1.ModeBuild, task, pc) != Build(v1.ModeBuild, task, pc) {
		t.Error("Build is not deterministic")
	}
	if Build(v1.ModeResearch, task, pc) != BuildResearch(task, pc) {
		t.Error("research mode should render the research prompt")
	}
	if Build("", task, pc) != BuildTask(task, pc) {
		t.Error("empty mode should default to the build prompt")
	}
}

func TestEmptyDescriptionIsDropped(t *testing.T) {
	got := BuildTask(Task{Title: "T"}, Context{ProjectName: "P", WorkDir: "/w", Total: 1})
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("unexpected blank section:\n%q", got)
	}
}
