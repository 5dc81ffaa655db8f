package population

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Patients = 120
	cfg.Seed = 7
	cfg.Cohorts = []CohortSpec{
		{Name: "diabetic", Low: 10, High: 40, Probability: 0.20},
		{Name: "hypertensive", Low: 12, High: 45, Probability: 0.25},
		{Name: "on_metformin", Low: 5, High: 30, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.70},
		{Name: "hba1c_monitored", Low: 6, High: 35, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.60},
	}
	return cfg
}

func generate(t *testing.T, cfg Config) *Dataset {
	t.Helper()
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	dataset, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return dataset
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testConfig()
	first := generate(t, cfg)
	second := generate(t, cfg)

	for _, system := range Systems {
		a, err := json.Marshal(first.SeedBundle(system))
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(second.SeedBundle(system))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s seed bundle differs between runs of the same seed", system)
		}
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Error("full dataset differs between runs of the same seed")
	}
}

func TestGenerateSeedChangesOutput(t *testing.T) {
	cfg := testConfig()
	first := generate(t, cfg)
	cfg.Seed = 8
	second := generate(t, cfg)

	a, _ := json.Marshal(first.Records)
	b, _ := json.Marshal(second.Records)
	if bytes.Equal(a, b) {
		t.Error("different seeds produced identical records")
	}
}

func TestCohortRangeInvariant(t *testing.T) {
	cfg := testConfig()
	dataset := generate(t, cfg)

	for _, spec := range cfg.Cohorts {
		count := len(dataset.Cohorts[spec.Name])
		if count < spec.Low || count > spec.High {
			t.Errorf("cohort %s: %d members outside [%d, %d]", spec.Name, count, spec.Low, spec.High)
		}
	}
}

func TestEveryPersonHasOneRecordPerSystem(t *testing.T) {
	dataset := generate(t, testConfig())

	primaries := make(map[string]map[string]int) // person -> system -> count
	for _, record := range dataset.Records {
		if record.Origin != OriginPrimary {
			continue
		}
		if primaries[record.PersonID] == nil {
			primaries[record.PersonID] = make(map[string]int)
		}
		primaries[record.PersonID][record.SystemName]++
	}

	for _, person := range dataset.Persons {
		for _, system := range Systems {
			if primaries[person.PersonID][system] != 1 {
				t.Fatalf("%s has %d primary records in %s", person.PersonID, primaries[person.PersonID][system], system)
			}
		}
	}
}

func TestLocalIDsUniqueWithinSystem(t *testing.T) {
	dataset := generate(t, testConfig())

	seen := make(map[string]bool)
	for _, record := range dataset.Records {
		key := record.SystemName + "/" + record.LocalID
		if seen[key] {
			t.Fatalf("duplicate local id %s", key)
		}
		seen[key] = true
		prefix := systemConfigs[record.SystemName].Prefix
		if !strings.HasPrefix(record.LocalID, prefix) {
			t.Errorf("%s record id %s lacks prefix %s", record.SystemName, record.LocalID, prefix)
		}
	}
}

func TestDuplicateRecordsShareAPerson(t *testing.T) {
	dataset := generate(t, testConfig())

	duplicates := 0
	for _, record := range dataset.Records {
		if record.Origin != OriginDuplicate {
			continue
		}
		duplicates++
		ids := dataset.LocalIDsBySystem(record.PersonID)[record.SystemName]
		if len(ids) < 2 {
			t.Errorf("duplicate %s/%s has no sibling primary", record.SystemName, record.LocalID)
		}
	}
	if duplicates == 0 {
		t.Error("no duplicate records generated at 5% rate over 120 patients")
	}
}

func TestReferentialIntegrity(t *testing.T) {
	dataset := generate(t, testConfig())

	patients := make(map[string]bool)
	for _, record := range dataset.Records {
		patients[record.SystemName+"/"+record.LocalID] = true
	}

	for i := range dataset.Resources {
		cr := &dataset.Resources[i]
		subject := cr.Resource.SubjectID()
		if !patients[cr.SystemName+"/"+subject] {
			t.Errorf("%s %s/%s references missing patient %q",
				cr.SystemName, cr.Resource.ResourceType, cr.Resource.ID, subject)
		}
	}
}

func TestQualityInjectionTagged(t *testing.T) {
	cfg := testConfig()
	cfg.OrphanRate = 0.2
	cfg.AbandonedRate = 0.2
	cfg.FutureDateRate = 0.1
	dataset := generate(t, cfg)
	refNow, _ := time.Parse("2006-01-02", cfg.ReferenceDate)

	counts := make(map[string]int)
	for i := range dataset.Resources {
		cr := &dataset.Resources[i]
		for _, flag := range cr.QualityFlags {
			counts[flag]++
		}

		if cr.HasFlag(FlagOrphaned) && len(cr.Resource.BasedOn) > 0 {
			t.Errorf("orphaned %s has a basedOn reference", cr.Resource.ID)
		}
		if cr.HasFlag(FlagAbandoned) {
			if cr.Resource.Status != "active" {
				t.Errorf("abandoned %s has status %q", cr.Resource.ID, cr.Resource.Status)
			}
			authored, err := time.Parse("2006-01-02T15:04:05Z", cr.Resource.AuthoredOn)
			if err != nil || refNow.Sub(authored) <= time.Duration(cfg.StalenessDays)*24*time.Hour {
				t.Errorf("abandoned %s not stale: authored %s", cr.Resource.ID, cr.Resource.AuthoredOn)
			}
		}
		if cr.HasFlag(FlagLegacyCode) && cr.Resource.CodeSystem() != CodeSystemICD9 {
			t.Errorf("legacy-flagged %s coded in %s", cr.Resource.ID, cr.Resource.CodeSystem())
		}
	}

	for _, flag := range []string{FlagOrphaned, FlagAbandoned, FlagFutureDated, FlagLegacyCode} {
		if counts[flag] == 0 {
			t.Errorf("no resources tagged %s at elevated rates", flag)
		}
	}
}

func TestFutureDatingLeavesFlaggedResourcesAlone(t *testing.T) {
	cfg := testConfig()
	cfg.OrphanRate = 0.3
	cfg.AbandonedRate = 0.5
	cfg.FutureDateRate = 0.5
	dataset := generate(t, cfg)
	refNow, _ := time.Parse("2006-01-02", cfg.ReferenceDate)

	futureDated := 0
	for i := range dataset.Resources {
		cr := &dataset.Resources[i]
		if !cr.HasFlag(FlagFutureDated) {
			continue
		}
		futureDated++
		if len(cr.QualityFlags) != 1 {
			t.Errorf("%s carries %v; future dating must not stack on another flag", cr.Resource.ID, cr.QualityFlags)
		}
		if cr.HasFlag(FlagAbandoned) {
			t.Errorf("%s flagged both abandoned and future_dated", cr.Resource.ID)
		}
	}
	if futureDated == 0 {
		t.Error("no resources future-dated at 50% rate")
	}

	// Abandoned orders must stay stale after the future-dating pass.
	for i := range dataset.Resources {
		cr := &dataset.Resources[i]
		if !cr.HasFlag(FlagAbandoned) {
			continue
		}
		authored, err := time.Parse("2006-01-02T15:04:05Z", cr.Resource.AuthoredOn)
		if err != nil || !authored.Before(refNow) {
			t.Errorf("abandoned %s authored %s, not before reference date", cr.Resource.ID, cr.Resource.AuthoredOn)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Cohorts[0].Low = 500 // exceeds 120 patients
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("expected config error for impossible cohort range")
	}

	cfg = testConfig()
	cfg.DuplicateRate = 1.5
	if _, err := NewGenerator(cfg); err == nil {
		t.Fatal("expected config error for rate above 1")
	}
}
