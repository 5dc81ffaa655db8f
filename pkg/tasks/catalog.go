package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hdh-bench/platform/pkg/mpi"
)

// Metric families. Each task names exactly one; the scoring engine
// dispatches on it.
const (
	MetricSetF1         = "set_f1"
	MetricRange         = "range"
	MetricFieldMatch    = "field_agreement"
	MetricDupGroups     = "duplicate_groups"
	MetricProbabilistic = "probabilistic_match"
)

// Answer tells the scoring engine which slice of ground truth a task is
// scored against. Kind follows the metric; the remaining fields narrow it.
type Answer struct {
	Cohort          string `json:"cohort,omitempty"`
	IntersectCohort string `json:"intersect_cohort,omitempty"`
	System          string `json:"system,omitempty"`
	Flag            string `json:"flag,omitempty"`
	Low             int    `json:"low,omitempty"`
	High            int    `json:"high,omitempty"`
}

type Task struct {
	ID              string            `json:"task_id"`
	Title           string            `json:"title"`
	Category        string            `json:"category"`
	Difficulty      string            `json:"difficulty"`
	SystemsRequired []string          `json:"systems_required"`
	MaxTurns        int               `json:"max_turns"`
	Prompt          string            `json:"prompt"`
	Metric          string            `json:"metric"`
	ResponseFormat  map[string]string `json:"response_format"`
	Threshold       float64           `json:"threshold"`
	RecallGate      float64           `json:"recall_gate,omitempty"`
	// SubjectIndex selects which generated person fills {patient_*_id}
	// placeholders, keeping task instances reproducible per dataset.
	SubjectIndex int    `json:"subject_index,omitempty"`
	Answer       Answer `json:"answer"`
}

type Catalog struct {
	Tasks []Task `json:"tasks"`
}

// Instance is a task bound to one dataset: placeholders resolved, the
// filled parameters kept for scoring.
type Instance struct {
	Task   Task              `json:"task"`
	Prompt string            `json:"prompt"`
	Params map[string]string `json:"params"`
}

// Load reads a catalog file, or returns the compiled-in default when no
// path is given. A file that parses but contains no tasks is an error.
func Load(path string) (Catalog, error) {
	if path == "" {
		return defaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("read task catalog: %w", err)
	}
	var catalog Catalog
	if err := json.Unmarshal(content, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse task catalog: %w", err)
	}
	if len(catalog.Tasks) == 0 {
		return Catalog{}, fmt.Errorf("task catalog %s contains no tasks", path)
	}
	return catalog, nil
}

// Select filters the catalog down to the requested ids; an empty list
// keeps everything. Unknown ids are an error rather than a silent skip.
func (c Catalog) Select(ids []string) (Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}
	byID := make(map[string]Task, len(c.Tasks))
	for _, t := range c.Tasks {
		byID[t.ID] = t
	}
	out := Catalog{}
	for _, id := range ids {
		task, ok := byID[id]
		if !ok {
			return Catalog{}, fmt.Errorf("unknown task id %q", id)
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out, nil
}

// Materialize binds every task to the dataset behind the index, filling
// {patient_ehr_id}-style placeholders from the selected subject's records.
func (c Catalog) Materialize(idx *mpi.Index) ([]Instance, error) {
	instances := make([]Instance, 0, len(c.Tasks))
	for _, task := range c.Tasks {
		params, err := subjectParams(task, idx)
		if err != nil {
			return nil, err
		}
		instances = append(instances, Instance{
			Task:   task,
			Prompt: fillPrompt(task.Prompt, params),
			Params: params,
		})
	}
	return instances, nil
}

func subjectParams(task Task, idx *mpi.Index) (map[string]string, error) {
	params := make(map[string]string)
	if !strings.Contains(task.Prompt, "{patient_") {
		return params, nil
	}
	if task.SubjectIndex < 0 || task.SubjectIndex >= len(idx.Entries) {
		return nil, fmt.Errorf("task %s: subject index %d out of range", task.ID, task.SubjectIndex)
	}
	entry := idx.Entries[task.SubjectIndex]
	for system, ids := range entry.SystemIDs {
		if len(ids) > 0 {
			params["patient_"+system+"_id"] = ids[0]
		}
	}
	return params, nil
}

func fillPrompt(prompt string, params map[string]string) string {
	for key, value := range params {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", value)
	}
	return prompt
}
