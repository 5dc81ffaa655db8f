package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/hdh-bench/platform/pkg/common/config"
	"github.com/hdh-bench/platform/pkg/common/database"
	"github.com/hdh-bench/platform/pkg/common/kafka"
	"github.com/hdh-bench/platform/pkg/common/logger"
	"github.com/hdh-bench/platform/pkg/harness"
	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/results"
)

// Exit code 0 means the run completed, regardless of how the agent scored.
// Non-zero is reserved for infrastructure failure: services unreachable,
// dataset missing, output unwritable.
func main() {
	logger.Init()
	cfg := config.Load()

	var (
		agentName = flag.String("agent-name", "unnamed-agent", "label for the agent under test")
		agentURL  = flag.String("agent-url", "", "agent endpoint (overrides AGENT_URL)")
		taskList  = flag.String("tasks", "", "comma-separated task ids")
		allTasks  = flag.Bool("all-tasks", false, "run the full catalog")
		catalog   = flag.String("catalog", "", "task catalog JSON (default: built-in)")
		dataDir   = flag.String("data", cfg.DataDir, "dataset directory")
		output    = flag.String("output", "runs/latest", "run output directory")
	)
	flag.Parse()

	if *agentURL != "" {
		cfg.AgentURL = *agentURL
	}
	var taskIDs []string
	if !*allTasks && *taskList != "" {
		for _, id := range strings.Split(*taskList, ",") {
			if id = strings.TrimSpace(id); id != "" {
				taskIDs = append(taskIDs, id)
			}
		}
	}
	if !*allTasks && len(taskIDs) == 0 {
		logger.Log.Fatal("Select tasks with -tasks or pass -all-tasks")
	}

	index, err := mpi.Read(filepath.Join(*dataDir, "ground_truth.json"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load ground truth; generate a dataset first")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	repo, err := results.NewRepository(db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to migrate results schema")
	}
	cache := database.GetRedis()
	producer := kafka.NewProducer(cfg.RunTopic)
	defer producer.Close()

	runner := harness.NewRunner(cfg, index, cache, producer, repo)
	result, err := runner.Run(context.Background(), harness.RunOptions{
		AgentName:   *agentName,
		CatalogPath: *catalog,
		TaskIDs:     taskIDs,
		OutputDir:   *output,
	})
	if err != nil {
		logger.WithError(err).Error("Benchmark run failed")
		os.Exit(1)
	}

	logger.WithFields(map[string]interface{}{
		"run_id":        result.RunID,
		"overall_score": result.Summary.OverallScore,
		"passed":        result.Summary.Passed,
		"tasks":         result.Summary.Tasks,
		"output":        result.OutputDir,
	}).Info("Run complete")
}
