package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hdh-bench/platform/pkg/fhir"
	"github.com/hdh-bench/platform/pkg/identity"
	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/population"
)

// Issue kinds, ordered roughly by severity.
const (
	KindDeterminism    = "determinism_violation"
	KindReferentialGap = "referential_gap"
	KindUntaggedIssue  = "untagged_quality_issue"
	KindBadGroup       = "invalid_duplicate_group"
	KindCohortRange    = "cohort_range_violation"
	KindSnapshotDrift  = "snapshot_drift"
)

// A record's perturbed demographics must stay recognizably the same person.
// Name-swapped duplicates score low by construction and are exempt.
const driftFloor = 0.3

type Issue struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Outcome is a verification result. An empty Issues slice means the
// dataset on disk is internally consistent and reproducible.
type Outcome struct {
	Issues  []Issue        `json:"issues"`
	Checked map[string]int `json:"checked"`
}

func (o *Outcome) report(kind, format string, args ...interface{}) {
	o.Issues = append(o.Issues, Issue{Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

func (o *Outcome) OK() bool {
	return len(o.Issues) == 0
}

// Run replays generation under the dataset's own config and audits the
// on-disk seeds against the ground truth. Violations are reported, never
// corrected.
func Run(cfg population.Config, dataDir string) (*Outcome, error) {
	outcome := &Outcome{Checked: make(map[string]int)}

	index, err := mpi.Read(filepath.Join(dataDir, "ground_truth.json"))
	if err != nil {
		return nil, err
	}

	dataset, err := checkDeterminism(cfg, dataDir, outcome)
	if err != nil {
		return nil, err
	}
	checkSnapshotDrift(dataset, outcome)

	refNow, err := time.Parse("2006-01-02", index.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("ground truth reference date: %w", err)
	}

	flagged := make(map[string]map[string]bool) // flag -> resource id set
	for _, q := range index.Quality {
		if flagged[q.Flag] == nil {
			flagged[q.Flag] = make(map[string]bool)
		}
		flagged[q.Flag][q.ResourceID] = true
	}

	for _, system := range population.Systems {
		bundle, err := fhir.LoadBundle(filepath.Join(dataDir, system+"_seed.json"))
		if err != nil {
			return nil, fmt.Errorf("load %s seed: %w", system, err)
		}
		checkBundle(system, bundle.Resources(), refNow, cfg.StalenessDays, flagged, outcome)
	}

	checkDuplicateGroups(index, dataDir, outcome)
	checkCohortRanges(cfg, index, outcome)
	return outcome, nil
}

// checkDeterminism regenerates from the same config and compares output
// hashes file by file. The regenerated dataset is returned for follow-on
// checks.
func checkDeterminism(cfg population.Config, dataDir string, outcome *Outcome) (*population.Dataset, error) {
	generator, err := population.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	dataset, err := generator.Generate()
	if err != nil {
		return nil, err
	}

	for _, system := range population.Systems {
		regenerated, err := json.MarshalIndent(dataset.SeedBundle(system), "", "  ")
		if err != nil {
			return nil, err
		}
		regenerated = append(regenerated, '\n')

		onDisk, err := os.ReadFile(filepath.Join(dataDir, system+"_seed.json"))
		if err != nil {
			return nil, err
		}
		if got, want := hash(onDisk), hash(regenerated); got != want {
			outcome.report(KindDeterminism, "%s_seed.json: on-disk hash %s, regenerated %s", system, got, want)
		}
		outcome.Checked["seed_files"]++
	}

	regenerated, err := json.MarshalIndent(mpi.Build(dataset), "", "  ")
	if err != nil {
		return nil, err
	}
	regenerated = append(regenerated, '\n')
	onDisk, err := os.ReadFile(filepath.Join(dataDir, "ground_truth.json"))
	if err != nil {
		return nil, err
	}
	if got, want := hash(onDisk), hash(regenerated); got != want {
		outcome.report(KindDeterminism, "ground_truth.json: on-disk hash %s, regenerated %s", got, want)
	}
	return dataset, nil
}

// checkSnapshotDrift bounds how far perturbed demographics may stray from
// the canonical person behind them.
func checkSnapshotDrift(dataset *population.Dataset, outcome *Outcome) {
	persons := make(map[string]identity.Person, len(dataset.Persons))
	for _, p := range dataset.Persons {
		persons[p.PersonID] = p
	}

	for _, record := range dataset.Records {
		person, ok := persons[record.PersonID]
		if !ok {
			outcome.report(KindReferentialGap, "%s record %s bound to unknown person %s", record.SystemName, record.LocalID, record.PersonID)
			continue
		}
		outcome.Checked["snapshots"]++
		if strings.EqualFold(record.Demographics.FirstName, person.LastName) {
			continue
		}
		if sim := identity.Similarity(record.Demographics, person); sim < driftFloor {
			outcome.report(KindSnapshotDrift, "%s record %s: similarity %.2f below %.2f for %s",
				record.SystemName, record.LocalID, sim, driftFloor, record.PersonID)
		}
	}
}

// checkBundle enforces referential integrity: every clinical
// resource must point at a patient in its own system, and every deliberate
// breakage must carry its tag in ground truth.
func checkBundle(system string, resources []*fhir.Resource, refNow time.Time, stalenessDays int,
	flagged map[string]map[string]bool, outcome *Outcome) {

	patients := make(map[string]bool)
	for _, r := range resources {
		if r.ResourceType == "Patient" {
			patients[r.ID] = true
		}
	}

	for _, r := range resources {
		if r.ResourceType == "Patient" {
			continue
		}
		outcome.Checked["clinical_resources"]++

		if subject := r.SubjectID(); !patients[subject] {
			outcome.report(KindReferentialGap, "%s %s/%s: subject %q not in system", system, r.ResourceType, r.ID, subject)
		}

		if r.ResourceType == "Observation" && len(r.BasedOn) == 0 && !flagged["orphaned"][r.ID] {
			outcome.report(KindUntaggedIssue, "%s Observation/%s: no basedOn and not tagged orphaned", system, r.ID)
		}

		if r.ResourceType == "ServiceRequest" && r.Status == "active" {
			authored, err := time.Parse("2006-01-02T15:04:05Z", r.AuthoredOn)
			if err == nil && refNow.Sub(authored) > time.Duration(stalenessDays)*24*time.Hour &&
				!flagged["abandoned"][r.ID] {
				outcome.report(KindUntaggedIssue, "%s ServiceRequest/%s: stale active order not tagged abandoned", system, r.ID)
			}
		}

		if date := primaryDate(r); date != "" {
			parsed, err := time.Parse("2006-01-02T15:04:05Z", date)
			if err == nil && parsed.After(refNow) && !flagged["future_dated"][r.ID] {
				outcome.report(KindUntaggedIssue, "%s %s/%s: future date not tagged", system, r.ResourceType, r.ID)
			}
		}

		if r.ResourceType == "Condition" && r.CodeSystem() == population.CodeSystemICD9 &&
			!flagged["legacy_code"][r.ID] {
			outcome.report(KindUntaggedIssue, "%s Condition/%s: ICD-9 coding not tagged legacy", system, r.ID)
		}
	}
}

func primaryDate(r *fhir.Resource) string {
	switch r.ResourceType {
	case "Condition":
		return r.RecordedDate
	case "Observation":
		return r.EffectiveDateTime
	case "ServiceRequest", "MedicationRequest":
		return r.AuthoredOn
	case "Encounter":
		if r.Period != nil {
			return r.Period.Start
		}
	case "Claim":
		return r.Created
	}
	return ""
}

// checkDuplicateGroups verifies group shape: size at least two, members
// present in their system's seed, no member in two groups.
func checkDuplicateGroups(index *mpi.Index, dataDir string, outcome *Outcome) {
	patientsBySystem := make(map[string]map[string]bool)
	for _, system := range population.Systems {
		bundle, err := fhir.LoadBundle(filepath.Join(dataDir, system+"_seed.json"))
		if err != nil {
			continue
		}
		set := make(map[string]bool)
		for _, r := range bundle.Resources() {
			if r.ResourceType == "Patient" {
				set[r.ID] = true
			}
		}
		patientsBySystem[system] = set
	}

	seen := make(map[string]bool)
	for _, group := range index.DuplicateGroups {
		outcome.Checked["duplicate_groups"]++
		if len(group.LocalIDs) < 2 {
			outcome.report(KindBadGroup, "%s group for %s has %d members", group.SystemName, group.PersonID, len(group.LocalIDs))
		}
		for _, id := range group.LocalIDs {
			key := group.SystemName + "/" + id
			if seen[key] {
				outcome.report(KindBadGroup, "%s appears in more than one group", key)
			}
			seen[key] = true
			if !patientsBySystem[group.SystemName][id] {
				outcome.report(KindBadGroup, "%s member %s missing from seed", group.SystemName, id)
			}
		}
	}
}

func checkCohortRanges(cfg population.Config, index *mpi.Index, outcome *Outcome) {
	for _, spec := range cfg.Cohorts {
		count := len(index.Cohorts[spec.Name])
		outcome.Checked["cohorts"]++
		if count < spec.Low || count > spec.High {
			outcome.report(KindCohortRange, "cohort %s: %d members outside [%d,%d]", spec.Name, count, spec.Low, spec.High)
		}
	}
}

func hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
