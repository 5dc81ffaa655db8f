package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/hdh-bench/platform/pkg/common/config"
	"github.com/hdh-bench/platform/pkg/common/logger"
	"github.com/hdh-bench/platform/pkg/common/models"
	"github.com/hdh-bench/platform/pkg/harness"
	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/scoring"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// Offline scorer: re-scores a previously collected raw_results.json without
// touching the agent or the mock services.
func main() {
	logger.Init()
	cfg := config.Load()

	var (
		responsesPath = flag.String("responses", "runs/latest/raw_results.json", "raw agent responses")
		catalogPath   = flag.String("catalog", "", "task catalog JSON (default: built-in)")
		dataDir       = flag.String("data", cfg.DataDir, "dataset directory")
		output        = flag.String("output", "", "scored results path (default: next to responses)")
		agentName     = flag.String("agent-name", "unnamed-agent", "label for the report")
	)
	flag.Parse()

	index, err := mpi.Read(filepath.Join(*dataDir, "ground_truth.json"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load ground truth")
	}

	content, err := os.ReadFile(*responsesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to read responses")
	}
	var responses []models.AgentResponse
	if err := json.Unmarshal(content, &responses); err != nil {
		logger.WithError(err).Fatal("Failed to parse responses")
	}

	catalog, err := tasks.Load(*catalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load task catalog")
	}
	instances, err := catalog.Materialize(index)
	if err != nil {
		logger.WithError(err).Fatal("Failed to materialize tasks")
	}
	byTask := make(map[string]tasks.Instance, len(instances))
	for _, inst := range instances {
		byTask[inst.Task.ID] = inst
	}

	engine := scoring.NewEngine(scoring.Config{
		PassThreshold:    cfg.PassThreshold,
		MatchCutoff:      cfg.MatchCutoff,
		FalseMatchWeight: cfg.FalseMatchWeight,
		LooseGroups:      true,
	})

	var scored []tasks.Instance
	var kept []models.AgentResponse
	var reports []scoring.Report
	for _, response := range responses {
		inst, ok := byTask[response.TaskID]
		if !ok {
			logger.WithField("task_id", response.TaskID).Warn("Response for unknown task; skipping")
			continue
		}
		scored = append(scored, inst)
		kept = append(kept, response)
		reports = append(reports, engine.Score(inst, response.Response, index))
	}
	summary := scoring.Summarize(scored, reports)

	outPath := *output
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(*responsesPath), "scored_results.json")
	}
	payload, err := json.MarshalIndent(map[string]interface{}{
		"summary": summary,
		"reports": reports,
	}, "", "  ")
	if err != nil {
		logger.WithError(err).Fatal("Failed to encode scored results")
	}
	if err := os.WriteFile(outPath, append(payload, '\n'), 0o644); err != nil {
		logger.WithError(err).Fatal("Failed to write scored results")
	}

	report := harness.RenderReport(*agentName, "offline", scored, kept, reports, summary)
	reportPath := filepath.Join(filepath.Dir(outPath), "REPORT.md")
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		logger.WithError(err).Fatal("Failed to write report")
	}

	logger.WithFields(map[string]interface{}{
		"tasks":         summary.Tasks,
		"passed":        summary.Passed,
		"overall_score": summary.OverallScore,
		"output":        outPath,
	}).Info("Scoring complete")
}
