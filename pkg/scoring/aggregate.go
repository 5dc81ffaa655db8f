package scoring

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/hdh-bench/platform/pkg/tasks"
)

// CategoryStats aggregates scores within one task category.
type CategoryStats struct {
	Tasks     int     `json:"tasks"`
	Passed    int     `json:"passed"`
	MeanScore float64 `json:"mean_score"`
}

// Summary aggregates a full run's reports.
type Summary struct {
	Tasks        int                      `json:"tasks"`
	Passed       int                      `json:"passed"`
	Malformed    int                      `json:"malformed"`
	OverallScore float64                  `json:"overall_score"`
	MedianScore  float64                  `json:"median_score"`
	StdDev       float64                  `json:"std_dev"`
	Categories   map[string]CategoryStats `json:"categories"`
}

// Summarize folds per-task reports into run-level statistics. Instances and
// reports are matched by position.
func Summarize(instances []tasks.Instance, reports []Report) Summary {
	summary := Summary{
		Tasks:      len(reports),
		Categories: make(map[string]CategoryStats),
	}
	if len(reports) == 0 {
		return summary
	}

	scores := make([]float64, 0, len(reports))
	byCategory := make(map[string][]float64)
	passedByCategory := make(map[string]int)

	for i, report := range reports {
		scores = append(scores, report.RawScore)
		if report.Pass {
			summary.Passed++
		}
		if _, malformed := report.Breakdown["error"]; malformed {
			summary.Malformed++
		}
		category := instances[i].Task.Category
		byCategory[category] = append(byCategory[category], report.RawScore)
		if report.Pass {
			passedByCategory[category]++
		}
	}

	summary.OverallScore, _ = stats.Mean(scores)
	summary.MedianScore, _ = stats.Median(scores)
	summary.StdDev, _ = stats.StandardDeviation(scores)

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		mean, _ := stats.Mean(byCategory[category])
		summary.Categories[category] = CategoryStats{
			Tasks:     len(byCategory[category]),
			Passed:    passedByCategory[category],
			MeanScore: mean,
		}
	}
	return summary
}
