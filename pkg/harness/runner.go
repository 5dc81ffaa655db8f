package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hdh-bench/platform/pkg/common/config"
	"github.com/hdh-bench/platform/pkg/common/kafka"
	"github.com/hdh-bench/platform/pkg/common/logger"
	"github.com/hdh-bench/platform/pkg/common/models"
	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/results"
	"github.com/hdh-bench/platform/pkg/scoring"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// ErrServiceUnavailable is run-fatal: scores against a partially reachable
// dataset would be meaningless.
var ErrServiceUnavailable = errors.New("mock system service unavailable")

type Runner struct {
	cfg      *config.Config
	index    *mpi.Index
	engine   *scoring.Engine
	client   *AgentClient
	cache    *redis.Client
	producer *kafka.Producer
	repo     *results.Repository
}

func NewRunner(cfg *config.Config, index *mpi.Index, cache *redis.Client, producer *kafka.Producer, repo *results.Repository) *Runner {
	return &Runner{
		cfg:   cfg,
		index: index,
		engine: scoring.NewEngine(scoring.Config{
			PassThreshold:    cfg.PassThreshold,
			MatchCutoff:      cfg.MatchCutoff,
			FalseMatchWeight: cfg.FalseMatchWeight,
			LooseGroups:      true,
		}),
		client:   NewAgentClient(cfg.AgentURL, cfg.AgentTimeout),
		cache:    cache,
		producer: producer,
		repo:     repo,
	}
}

type RunOptions struct {
	AgentName   string
	CatalogPath string
	TaskIDs     []string // empty = all tasks
	OutputDir   string
}

type RunResult struct {
	RunID     string
	OutputDir string
	Summary   scoring.Summary
}

// Run executes the benchmark: preflight, task execution with bounded
// parallelism, scoring, aggregation, and output files. Task-level failures
// are scored and reported, never fatal; only infrastructure failures
// return an error.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := r.preflight(ctx); err != nil {
		return nil, err
	}

	catalog, err := tasks.Load(opts.CatalogPath)
	if err != nil {
		return nil, err
	}
	catalog, err = catalog.Select(opts.TaskIDs)
	if err != nil {
		return nil, err
	}
	instances, err := catalog.Materialize(r.index)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	startedAt := time.Now()
	log := logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"agent":  opts.AgentName,
		"tasks":  len(instances),
	})
	log.Info("Benchmark run starting")

	r.publish(ctx, "run_started", map[string]interface{}{
		"run_id": runID,
		"agent":  opts.AgentName,
		"tasks":  len(instances),
	})

	responses := r.collect(ctx, runID, instances)

	reports := make([]scoring.Report, len(instances))
	for i, inst := range instances {
		reports[i] = r.engine.Score(inst, responses[i].Response, r.index)
		if responses[i].TimedOut {
			logger.WithTask(runID, inst.Task.ID).Warn("Task timed out; scored on partial response")
		}
		r.publish(ctx, "task_scored", map[string]interface{}{
			"run_id":    runID,
			"task_id":   inst.Task.ID,
			"raw_score": reports[i].RawScore,
			"pass":      reports[i].Pass,
		})
	}

	summary := scoring.Summarize(instances, reports)
	finishedAt := time.Now()

	if err := r.writeOutputs(opts, runID, startedAt, finishedAt, instances, responses, reports, summary); err != nil {
		return nil, err
	}
	r.persist(ctx, runID, opts.AgentName, startedAt, finishedAt, instances, responses, reports, summary)

	r.publish(ctx, "run_completed", map[string]interface{}{
		"run_id":        runID,
		"overall_score": summary.OverallScore,
		"passed":        summary.Passed,
		"tasks":         summary.Tasks,
	})
	log.WithField("overall_score", summary.OverallScore).Info("Benchmark run completed")

	return &RunResult{RunID: runID, OutputDir: opts.OutputDir, Summary: summary}, nil
}

// preflight requires every mock system to answer /health before any task
// runs.
func (r *Runner) preflight(ctx context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	for system, baseURL := range r.cfg.ServiceURLs() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, system, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s at %s: %v", ErrServiceUnavailable, system, baseURL, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned status %d", ErrServiceUnavailable, system, resp.StatusCode)
		}
	}
	return nil
}

// collect runs tasks with bounded parallelism. Each slot is independent:
// the only shared state is the immutable index and the per-index response
// slot, so no locking is needed.
func (r *Runner) collect(ctx context.Context, runID string, instances []tasks.Instance) []models.AgentResponse {
	responses := make([]models.AgentResponse, len(instances))
	services := r.cfg.ServiceURLs()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.cfg.TaskParallelism)

	for i, inst := range instances {
		i, inst := i, inst
		group.Go(func() error {
			r.checkpoint(groupCtx, runID, inst.Task.ID, "running")
			taskCtx, cancel := context.WithTimeout(groupCtx, r.cfg.TaskTimeout)
			defer cancel()

			responses[i] = r.client.RunTask(taskCtx, inst, services)
			if taskCtx.Err() != nil {
				responses[i].TimedOut = true
			}
			r.checkpoint(groupCtx, runID, inst.Task.ID, "collected")
			return nil
		})
	}
	group.Wait()
	return responses
}

func (r *Runner) checkpoint(ctx context.Context, runID, taskID, status string) {
	if r.cache == nil {
		return
	}
	key := fmt.Sprintf("benchmark:run:%s:task:%s", runID, taskID)
	if err := r.cache.Set(ctx, key, status, 24*time.Hour).Err(); err != nil {
		logger.WithTask(runID, taskID).WithError(err).Warn("Failed to write checkpoint")
	}
}

func (r *Runner) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if err := r.producer.PublishEvent(ctx, eventType, "benchmark-runner", data); err != nil {
		logger.WithField("event_type", eventType).WithError(err).Warn("Failed to publish event")
	}
}

func (r *Runner) persist(ctx context.Context, runID, agent string, startedAt, finishedAt time.Time,
	instances []tasks.Instance, responses []models.AgentResponse, reports []scoring.Report, summary scoring.Summary) {
	if r.repo == nil {
		return
	}

	summaryJSON, _ := json.Marshal(summary)
	run := &results.BenchmarkRun{
		RunID:        runID,
		AgentName:    agent,
		DatasetSeed:  r.index.Seed,
		TaskCount:    summary.Tasks,
		PassedCount:  summary.Passed,
		OverallScore: summary.OverallScore,
		Summary:      summaryJSON,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		logger.WithField("run_id", runID).WithError(err).Warn("Failed to persist run")
		return
	}

	scores := make([]results.TaskScore, 0, len(reports))
	for i, report := range reports {
		breakdown, _ := json.Marshal(report.Breakdown)
		scores = append(scores, results.TaskScore{
			RunID:     runID,
			TaskID:    report.TaskID,
			Category:  instances[i].Task.Category,
			RawScore:  report.RawScore,
			Pass:      report.Pass,
			Breakdown: breakdown,
			Turns:     responses[i].Turns,
			TimedOut:  responses[i].TimedOut,
		})
	}
	if err := r.repo.SaveTaskScores(ctx, scores); err != nil {
		logger.WithField("run_id", runID).WithError(err).Warn("Failed to persist task scores")
	}
}

func (r *Runner) writeOutputs(opts RunOptions, runID string, startedAt, finishedAt time.Time,
	instances []tasks.Instance, responses []models.AgentResponse, reports []scoring.Report, summary scoring.Summary) error {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return err
	}

	metadata := map[string]interface{}{
		"run_id":       runID,
		"agent":        opts.AgentName,
		"dataset_seed": r.index.Seed,
		"started_at":   startedAt.UTC().Format(time.RFC3339),
		"finished_at":  finishedAt.UTC().Format(time.RFC3339),
		"task_ids":     taskIDs(instances),
	}
	if err := writeJSON(filepath.Join(opts.OutputDir, "metadata.json"), metadata); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(opts.OutputDir, "raw_results.json"), responses); err != nil {
		return err
	}
	scored := map[string]interface{}{
		"summary": summary,
		"reports": reports,
	}
	if err := writeJSON(filepath.Join(opts.OutputDir, "scored_results.json"), scored); err != nil {
		return err
	}

	report := RenderReport(opts.AgentName, runID, instances, responses, reports, summary)
	return os.WriteFile(filepath.Join(opts.OutputDir, "REPORT.md"), []byte(report), 0o644)
}

func taskIDs(instances []tasks.Instance) []string {
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.Task.ID)
	}
	return ids
}

func writeJSON(path string, value interface{}) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(content, '\n'), 0o644)
}
