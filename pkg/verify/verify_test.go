package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/population"
)

func writeDataset(t *testing.T, cfg population.Config) string {
	t.Helper()
	g, err := population.NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := dataset.WriteSeeds(dir); err != nil {
		t.Fatal(err)
	}
	if err := mpi.Build(dataset).Write(filepath.Join(dir, "ground_truth.json")); err != nil {
		t.Fatal(err)
	}
	return dir
}

func verifyConfig() population.Config {
	cfg := population.DefaultConfig()
	cfg.Patients = 150
	cfg.Seed = 19
	cfg.Cohorts = []population.CohortSpec{
		{Name: "diabetic", Low: 12, High: 50, Probability: 0.2},
		{Name: "hypertensive", Low: 15, High: 55, Probability: 0.25},
		{Name: "on_metformin", Low: 6, High: 40, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.7},
		{Name: "hba1c_monitored", Low: 7, High: 45, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.6},
	}
	return cfg
}

func TestVerifyCleanDataset(t *testing.T) {
	cfg := verifyConfig()
	dir := writeDataset(t, cfg)

	outcome, err := Run(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.OK() {
		t.Fatalf("clean dataset reported issues: %+v", outcome.Issues)
	}
	if outcome.Checked["clinical_resources"] == 0 || outcome.Checked["seed_files"] != 6 || outcome.Checked["snapshots"] == 0 {
		t.Errorf("checked = %+v", outcome.Checked)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	cfg := verifyConfig()
	dir := writeDataset(t, cfg)

	path := filepath.Join(dir, "ehr_seed.json")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(content, ' '), 0o644); err != nil {
		t.Fatal(err)
	}

	outcome, err := Run(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, issue := range outcome.Issues {
		if issue.Kind == KindDeterminism {
			found = true
		}
	}
	if !found {
		t.Fatalf("tampered seed not reported: %+v", outcome.Issues)
	}
}

func TestVerifyDetectsWrongSeed(t *testing.T) {
	cfg := verifyConfig()
	dir := writeDataset(t, cfg)

	cfg.Seed = 20
	outcome, err := Run(cfg, dir)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.OK() {
		t.Fatal("regeneration under a different seed should not match")
	}
}
