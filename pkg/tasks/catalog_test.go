package tasks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/population"
)

func buildIndex(t *testing.T) *mpi.Index {
	t.Helper()
	cfg := population.DefaultConfig()
	cfg.Patients = 500
	cfg.Seed = 3
	cfg.Cohorts = []population.CohortSpec{
		{Name: "diabetic", Low: 40, High: 120, Probability: 0.15},
		{Name: "hypertensive", Low: 50, High: 140, Probability: 0.18},
		{Name: "on_metformin", Low: 20, High: 90, Probability: 0.04, BoostCohort: "diabetic", BoostProbability: 0.7},
		{Name: "hba1c_monitored", Low: 25, High: 100, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.6},
	}
	g, err := population.NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return mpi.Build(dataset)
}

func TestDefaultCatalog(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(catalog.Tasks) != 14 {
		t.Fatalf("default catalog has %d tasks, want 14", len(catalog.Tasks))
	}

	seen := make(map[string]bool)
	for _, task := range catalog.Tasks {
		if seen[task.ID] {
			t.Errorf("duplicate task id %s", task.ID)
		}
		seen[task.ID] = true
		if task.Metric == "" || len(task.ResponseFormat) == 0 {
			t.Errorf("task %s missing metric or response format", task.ID)
		}
		if task.MaxTurns <= 0 {
			t.Errorf("task %s has no turn budget", task.ID)
		}
	}
}

func TestLoadCatalogFile(t *testing.T) {
	custom := Catalog{Tasks: []Task{{
		ID:             "X01",
		Title:          "Custom",
		Category:       "cohort_identification",
		Metric:         MetricRange,
		MaxTurns:       5,
		ResponseFormat: map[string]string{"patient_count": "number"},
		Answer:         Answer{Cohort: "diabetic", Low: 1, High: 10},
	}}}
	content, _ := json.Marshal(custom)
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].ID != "X01" {
		t.Fatalf("loaded %+v", loaded.Tasks)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should error")
	}
}

func TestSelect(t *testing.T) {
	catalog, _ := Load("")

	subset, err := catalog.Select([]string{"T01", "T06"})
	if err != nil {
		t.Fatal(err)
	}
	if len(subset.Tasks) != 2 || subset.Tasks[1].ID != "T06" {
		t.Fatalf("selected %+v", subset.Tasks)
	}

	if _, err := catalog.Select([]string{"T99"}); err == nil {
		t.Error("unknown task id should error")
	}

	all, err := catalog.Select(nil)
	if err != nil || len(all.Tasks) != len(catalog.Tasks) {
		t.Error("empty selection should keep everything")
	}
}

func TestMaterializeFillsPlaceholders(t *testing.T) {
	index := buildIndex(t)
	catalog, _ := Load("")

	instances, err := catalog.Materialize(index)
	if err != nil {
		t.Fatal(err)
	}

	for _, inst := range instances {
		if strings.Contains(inst.Prompt, "{patient_") {
			t.Errorf("task %s prompt still has placeholder: %s", inst.Task.ID, inst.Prompt)
		}
	}

	// T06 must carry its subject's real EHR id in both prompt and params.
	for _, inst := range instances {
		if inst.Task.ID != "T06" {
			continue
		}
		ehrID := inst.Params["patient_ehr_id"]
		if ehrID == "" {
			t.Fatal("T06 has no patient_ehr_id param")
		}
		if !strings.Contains(inst.Prompt, ehrID) {
			t.Errorf("T06 prompt does not mention %s", ehrID)
		}
		if index.PersonBySystemID("ehr", ehrID) == "" {
			t.Errorf("T06 subject %s not in ground truth", ehrID)
		}
	}
}

func TestMaterializeSubjectOutOfRange(t *testing.T) {
	index := buildIndex(t)
	catalog := Catalog{Tasks: []Task{{
		ID:           "X02",
		Prompt:       "Find {patient_ehr_id}.",
		SubjectIndex: 100000,
	}}}
	if _, err := catalog.Materialize(index); err == nil {
		t.Error("subject index beyond population should error")
	}
}
