package results

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BenchmarkRun is one persisted harness run.
type BenchmarkRun struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RunID        string         `gorm:"uniqueIndex;size:64" json:"run_id"`
	AgentName    string         `gorm:"size:128;index" json:"agent_name"`
	DatasetSeed  int64          `json:"dataset_seed"`
	TaskCount    int            `json:"task_count"`
	PassedCount  int            `json:"passed_count"`
	OverallScore float64        `json:"overall_score"`
	Summary      datatypes.JSON `json:"summary"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TaskScore is one persisted per-task report.
type TaskScore struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RunID     string         `gorm:"index;size:64" json:"run_id"`
	TaskID    string         `gorm:"size:16;index" json:"task_id"`
	Category  string         `gorm:"size:64" json:"category"`
	RawScore  float64        `json:"raw_score"`
	Pass      bool           `json:"pass"`
	Breakdown datatypes.JSON `json:"breakdown"`
	Turns     int            `json:"turns"`
	TimedOut  bool           `json:"timed_out"`
	CreatedAt time.Time      `json:"created_at"`
}

type Repository struct {
	db *gorm.DB
}

// NewRepository migrates the schema and returns the store. A nil db (no
// Postgres configured) yields a nil repository; callers treat that as
// persistence disabled.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, nil
	}
	if err := db.AutoMigrate(&BenchmarkRun{}, &TaskScore{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) SaveRun(ctx context.Context, run *BenchmarkRun) error {
	if r == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) SaveTaskScores(ctx context.Context, scores []TaskScore) error {
	if r == nil || len(scores) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&scores).Error
}

// RecentRuns returns the latest runs for the leaderboard view, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]BenchmarkRun, error) {
	if r == nil {
		return nil, nil
	}
	var runs []BenchmarkRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// RunScores returns every task score for one run, in task order.
func (r *Repository) RunScores(ctx context.Context, runID string) ([]TaskScore, error) {
	if r == nil {
		return nil, nil
	}
	var scores []TaskScore
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("task_id ASC").
		Find(&scores).Error
	return scores, err
}
