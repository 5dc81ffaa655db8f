package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hdh-bench/platform/pkg/common/models"
	"github.com/hdh-bench/platform/pkg/scoring"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// RenderReport produces the human-readable run report. Failed and
// malformed tasks are listed explicitly rather than silently omitted.
func RenderReport(agent, runID string, instances []tasks.Instance,
	responses []models.AgentResponse, reports []scoring.Report, summary scoring.Summary) string {

	var b strings.Builder
	b.WriteString("# Benchmark Report\n\n")
	fmt.Fprintf(&b, "- **Agent**: %s\n", agent)
	fmt.Fprintf(&b, "- **Run**: %s\n", runID)
	fmt.Fprintf(&b, "- **Overall score**: %.3f\n", summary.OverallScore)
	fmt.Fprintf(&b, "- **Passed**: %d/%d\n\n", summary.Passed, summary.Tasks)

	b.WriteString("## Task results\n\n")
	b.WriteString("| Task | Title | Category | Score | Pass | Turns |\n")
	b.WriteString("|------|-------|----------|-------|------|-------|\n")
	for i, report := range reports {
		pass := "no"
		if report.Pass {
			pass = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.3f | %s | %d |\n",
			report.TaskID, instances[i].Task.Title, instances[i].Task.Category,
			report.RawScore, pass, responses[i].Turns)
	}

	b.WriteString("\n## Category breakdown\n\n")
	categories := make([]string, 0, len(summary.Categories))
	for category := range summary.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		cs := summary.Categories[category]
		fmt.Fprintf(&b, "- **%s**: %d/%d passed, mean score %.3f\n",
			category, cs.Passed, cs.Tasks, cs.MeanScore)
	}

	var problems []string
	for i, report := range reports {
		// Timeouts come first: a timed-out task with no usable response also
		// scores as malformed, but the timeout is the story.
		if responses[i].TimedOut {
			problems = append(problems, fmt.Sprintf("- %s: timed out, scored on partial response", report.TaskID))
		} else if reason, ok := report.Breakdown["error"]; ok {
			problems = append(problems, fmt.Sprintf("- %s: malformed response (%v)", report.TaskID, reason))
		} else if responses[i].Error != "" {
			problems = append(problems, fmt.Sprintf("- %s: agent error (%s)", report.TaskID, responses[i].Error))
		}
	}
	if len(problems) > 0 {
		b.WriteString("\n## Failed and malformed tasks\n\n")
		b.WriteString(strings.Join(problems, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}
