package mpi

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/hdh-bench/platform/pkg/population"
)

func testDataset(t *testing.T) *population.Dataset {
	t.Helper()
	cfg := population.DefaultConfig()
	cfg.Patients = 100
	cfg.Seed = 11
	cfg.Cohorts = []population.CohortSpec{
		{Name: "diabetic", Low: 8, High: 35, Probability: 0.2},
		{Name: "hypertensive", Low: 10, High: 40, Probability: 0.25},
		{Name: "on_metformin", Low: 4, High: 25, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.7},
		{Name: "hba1c_monitored", Low: 5, High: 30, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.6},
	}
	g, err := population.NewGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := g.Generate()
	if err != nil {
		t.Fatal(err)
	}
	return dataset
}

func TestBuildIdempotent(t *testing.T) {
	dataset := testDataset(t)
	a, _ := json.Marshal(Build(dataset))
	b, _ := json.Marshal(Build(dataset))
	if !bytes.Equal(a, b) {
		t.Fatal("two builds over the same dataset differ")
	}
}

func TestSystemIDsPrimaryFirst(t *testing.T) {
	dataset := testDataset(t)
	index := Build(dataset)

	primary := make(map[string]string) // person/system -> local id
	for _, record := range dataset.Records {
		if record.Origin == population.OriginPrimary {
			primary[record.PersonID+"/"+record.SystemName] = record.LocalID
		}
	}

	for _, entry := range index.Entries {
		for system, ids := range entry.SystemIDs {
			if len(ids) == 0 {
				t.Fatalf("%s has no ids in %s", entry.PersonID, system)
			}
			if want := primary[entry.PersonID+"/"+system]; ids[0] != want {
				t.Errorf("%s/%s: first id %s is not the primary %s", entry.PersonID, system, ids[0], want)
			}
		}
	}
}

func TestDuplicateTaggingComplete(t *testing.T) {
	dataset := testDataset(t)
	index := Build(dataset)

	grouped := make(map[string]int) // system/localID -> group count
	for _, group := range index.DuplicateGroups {
		if len(group.LocalIDs) < 2 {
			t.Errorf("group for %s in %s has %d members", group.PersonID, group.SystemName, len(group.LocalIDs))
		}
		for _, id := range group.LocalIDs {
			grouped[group.SystemName+"/"+id]++
		}
	}

	for _, record := range dataset.Records {
		key := record.SystemName + "/" + record.LocalID
		if record.Origin == population.OriginDuplicate && grouped[key] != 1 {
			t.Errorf("duplicate record %s appears in %d groups, want exactly 1", key, grouped[key])
		}
		if grouped[key] > 1 {
			t.Errorf("record %s appears in more than one group", key)
		}
	}
}

func TestLookups(t *testing.T) {
	dataset := testDataset(t)
	index := Build(dataset)

	entry := index.Entries[0]
	ehrID := entry.SystemIDs["ehr"][0]
	if got := index.PersonBySystemID("ehr", ehrID); got != entry.PersonID {
		t.Errorf("PersonBySystemID(%s) = %s, want %s", ehrID, got, entry.PersonID)
	}
	if got := index.PrimaryID(entry.PersonID, "ehr"); got != ehrID {
		t.Errorf("PrimaryID = %s, want %s", got, ehrID)
	}
	if got := index.PersonBySystemID("ehr", "MRN-999999"); got != "" {
		t.Errorf("unknown id resolved to %s", got)
	}
}

func TestCohortPrimaryIDs(t *testing.T) {
	dataset := testDataset(t)
	index := Build(dataset)

	ids := index.CohortPrimaryIDs("diabetic", "ehr")
	if len(ids) != len(index.Cohorts["diabetic"]) {
		t.Fatalf("got %d ids for %d members", len(ids), len(index.Cohorts["diabetic"]))
	}
	for _, id := range ids {
		personID := index.PersonBySystemID("ehr", id)
		found := false
		for _, member := range index.Cohorts["diabetic"] {
			if member == personID {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("id %s does not belong to a cohort member", id)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dataset := testDataset(t)
	index := Build(dataset)

	path := filepath.Join(t.TempDir(), "ground_truth.json")
	if err := index.Write(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Seed != index.Seed || len(loaded.Entries) != len(index.Entries) {
		t.Fatal("loaded index does not match written index")
	}
	entry := index.Entries[3]
	if got := loaded.PersonBySystemID("lis", entry.SystemIDs["lis"][0]); got != entry.PersonID {
		t.Error("lookup tables not rebuilt after load")
	}
}
