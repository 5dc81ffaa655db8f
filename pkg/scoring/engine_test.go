package scoring

import (
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hdh-bench/platform/pkg/identity"
	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// fixtureIndex builds a 140-person index with one known duplicate group
// and a 134-member diabetic cohort. Primary EHR suffixes are odd so the
// person-000 duplicate (MRN-100002) collides with nothing.
func fixtureIndex(t *testing.T) *mpi.Index {
	t.Helper()

	prefixes := map[string]int{
		"ehr": 100000, "lis": 200000, "ris": 300000,
		"pharmacy": 400000, "pas": 500000, "billing": 600000,
	}
	names := map[string]string{
		"ehr": "MRN-", "lis": "LAB-", "ris": "RAD-",
		"pharmacy": "RX-", "pas": "ADT-", "billing": "ACCT-",
	}

	index := &mpi.Index{
		Seed:          1,
		ReferenceDate: "2026-02-01",
		Cohorts:       map[string][]string{},
	}
	var diabetics []string
	for i := 0; i < 140; i++ {
		personID := fmt.Sprintf("person-%03d", i)
		systemIDs := make(map[string][]string)
		for system, offset := range prefixes {
			systemIDs[system] = []string{fmt.Sprintf("%s%d", names[system], offset+1+2*i)}
		}
		index.Entries = append(index.Entries, mpi.Entry{
			PersonID:     personID,
			Demographics: identity.Person{PersonID: personID},
			SystemIDs:    systemIDs,
		})
		if i < 134 {
			diabetics = append(diabetics, personID)
		}
	}
	index.Cohorts["diabetic"] = diabetics

	// person-000: extra EHR registration MRN-100002.
	index.Entries[0].SystemIDs["ehr"] = append(index.Entries[0].SystemIDs["ehr"], "MRN-100002")
	index.DuplicateGroups = []mpi.DuplicateGroup{{
		SystemName: "ehr",
		PersonID:   "person-000",
		LocalIDs:   []string{"MRN-100001", "MRN-100002"},
	}}

	index.Quality = []mpi.QualityRecord{
		{SystemName: "lis", ResourceType: "Observation", ResourceID: "labres-a1", PersonID: "person-001", Flag: "orphaned"},
		{SystemName: "lis", ResourceType: "Observation", ResourceID: "labres-a2", PersonID: "person-002", Flag: "orphaned"},
	}

	// Round-trip through Write/Read to build lookup tables.
	path := filepath.Join(t.TempDir(), "ground_truth.json")
	if err := index.Write(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := mpi.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	return loaded
}

func setTask() tasks.Instance {
	return tasks.Instance{
		Task: tasks.Task{
			ID:             "T02",
			Category:       "cohort_identification",
			Metric:         tasks.MetricSetF1,
			ResponseFormat: map[string]string{"patient_ids": "string_array"},
			Threshold:      0.7,
			Answer:         tasks.Answer{Cohort: "diabetic", System: "ehr"},
		},
		Params: map[string]string{},
	}
}

func rangeTask() tasks.Instance {
	return tasks.Instance{
		Task: tasks.Task{
			ID:             "T01",
			Category:       "cohort_identification",
			Metric:         tasks.MetricRange,
			ResponseFormat: map[string]string{"patient_count": "number"},
			Answer:         tasks.Answer{Cohort: "diabetic", Low: 100, High: 160},
		},
		Params: map[string]string{},
	}
}

func idList(index *mpi.Index, n int) []any {
	ids := index.CohortPrimaryIDs("diabetic", "ehr")
	out := make([]any, 0, n)
	for i := 0; i < n && i < len(ids); i++ {
		out = append(out, ids[i])
	}
	return out
}

func TestSetF1RoundTrip(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	report := engine.Score(setTask(), map[string]any{"patient_ids": idList(index, 134)}, index)
	if report.RawScore != 1.0 || !report.Pass {
		t.Fatalf("exact claim: raw=%v pass=%v, want 1.0/true", report.RawScore, report.Pass)
	}
}

func TestSetF1CohortScenario(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	// 120 claimed, 110 correct.
	claimed := idList(index, 110)
	for i := 0; i < 10; i++ {
		claimed = append(claimed, fmt.Sprintf("MRN-9%05d", i))
	}
	report := engine.Score(setTask(), map[string]any{"patient_ids": claimed}, index)

	precision := 110.0 / 120.0
	recall := 110.0 / 134.0
	want := 2 * precision * recall / (precision + recall)
	if math.Abs(report.RawScore-want) > 1e-9 {
		t.Errorf("f1 = %v, want %v", report.RawScore, want)
	}
	if math.Abs(report.RawScore-0.866) > 0.001 {
		t.Errorf("f1 = %v, want about 0.866", report.RawScore)
	}
}

func TestSetF1RecallGate(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	inst := setTask()
	inst.Task.RecallGate = 0.9

	// 110 of 134 correct, nothing wrong: high F1, recall 0.82.
	report := engine.Score(inst, map[string]any{"patient_ids": idList(index, 110)}, index)
	if report.RawScore < 0.7 {
		t.Fatalf("f1 %v unexpectedly below threshold", report.RawScore)
	}
	if report.Pass {
		t.Error("recall 0.82 must fail a 0.9 recall gate despite F1 above threshold")
	}
}

func TestSetF1QualityFlagTarget(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	inst := tasks.Instance{
		Task: tasks.Task{
			ID:             "T08",
			Category:       "data_quality",
			Metric:         tasks.MetricSetF1,
			ResponseFormat: map[string]string{"resource_ids": "string_array"},
			Threshold:      0.7,
			Answer:         tasks.Answer{Flag: "orphaned"},
		},
		Params: map[string]string{},
	}
	report := engine.Score(inst, map[string]any{"resource_ids": []any{"labres-a1", "labres-a2"}}, index)
	if report.RawScore != 1.0 || !report.Pass {
		t.Errorf("raw=%v pass=%v, want 1.0/true", report.RawScore, report.Pass)
	}
}

func TestRangeBoundaries(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	cases := []struct {
		count    float64
		score    float64
		pass     bool
		strictLT bool // score must be strictly below 1.0
	}{
		{100, 1.0, true, false},
		{160, 1.0, true, false},
		{134, 1.0, true, false},
		{99, 0, false, true},
		{1000, 0.0, false, true},
	}
	for _, tc := range cases {
		report := engine.Score(rangeTask(), map[string]any{"patient_count": tc.count}, index)
		if tc.strictLT {
			if report.RawScore >= 1.0 {
				t.Errorf("count %v: score %v not strictly below 1.0", tc.count, report.RawScore)
			}
		} else if report.RawScore != tc.score {
			t.Errorf("count %v: score %v, want %v", tc.count, report.RawScore, tc.score)
		}
		if report.Pass != tc.pass {
			t.Errorf("count %v: pass %v, want %v", tc.count, report.Pass, tc.pass)
		}
	}

	// One step outside decays linearly: 1 - 1/60.
	report := engine.Score(rangeTask(), map[string]any{"patient_count": 99.0}, index)
	if want := 1 - 1.0/60.0; math.Abs(report.RawScore-want) > 1e-9 {
		t.Errorf("count 99: score %v, want %v", report.RawScore, want)
	}
}

func TestFieldAgreement(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	inst := tasks.Instance{
		Task: tasks.Task{
			ID:             "T06",
			Category:       "patient_360",
			Metric:         tasks.MetricFieldMatch,
			ResponseFormat: map[string]string{"system_ids": "object"},
			Threshold:      0.8,
		},
		Params: map[string]string{"patient_ehr_id": "MRN-100001"},
	}

	correct := map[string]any{}
	for system, ids := range index.Entries[0].SystemIDs {
		correct[system] = ids[0]
	}
	report := engine.Score(inst, map[string]any{"system_ids": correct}, index)
	if report.RawScore != 1.0 || !report.Pass {
		t.Fatalf("all correct: raw=%v pass=%v", report.RawScore, report.Pass)
	}

	// 5 of 6 correct passes the 0.8 aggregate.
	partial := map[string]any{}
	for k, v := range correct {
		partial[k] = v
	}
	partial["billing"] = "ACCT-999999"
	report = engine.Score(inst, map[string]any{"system_ids": partial}, index)
	if math.Abs(report.RawScore-5.0/6.0) > 1e-9 {
		t.Errorf("5/6 correct: raw=%v, want %v", report.RawScore, 5.0/6.0)
	}
	if !report.Pass {
		t.Error("5/6 correct should pass the 0.8 aggregate threshold")
	}

	// 4 of 6 does not.
	partial["pas"] = "ADT-999999"
	report = engine.Score(inst, map[string]any{"system_ids": partial}, index)
	if report.Pass {
		t.Errorf("4/6 correct passed with raw=%v", report.RawScore)
	}

	// The duplicate registration also counts as locating the patient.
	dup := map[string]any{}
	for k, v := range correct {
		dup[k] = v
	}
	dup["ehr"] = "MRN-100002"
	report = engine.Score(inst, map[string]any{"system_ids": dup}, index)
	if report.RawScore != 1.0 {
		t.Errorf("duplicate id rejected: raw=%v", report.RawScore)
	}
}

func dupTask() tasks.Instance {
	return tasks.Instance{
		Task: tasks.Task{
			ID:             "T13",
			Category:       "record_reconciliation",
			Metric:         tasks.MetricDupGroups,
			ResponseFormat: map[string]string{"duplicate_groups": "array"},
			Threshold:      0.5,
			Answer:         tasks.Answer{System: "ehr"},
		},
		Params: map[string]string{},
	}
}

func TestDuplicateGroupExactMatch(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	response := map[string]any{"duplicate_groups": []any{
		map[string]any{"ids": []any{"MRN-100001", "MRN-100002"}, "confidence": "high"},
	}}
	report := engine.Score(dupTask(), response, index)
	if report.RawScore != 1.0 || !report.Pass {
		t.Fatalf("exact group: raw=%v pass=%v", report.RawScore, report.Pass)
	}
	if report.Breakdown["exact_matches"] != 1.0 {
		t.Errorf("exact_matches = %v", report.Breakdown["exact_matches"])
	}
}

func TestDuplicateGroupPartialOverlap(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	response := map[string]any{"duplicate_groups": []any{
		map[string]any{"ids": []any{"MRN-100001", "MRN-999999"}, "confidence": "low"},
	}}
	report := engine.Score(dupTask(), response, index)
	if report.RawScore != 0.5 {
		t.Errorf("half-overlap group: raw=%v, want 0.5", report.RawScore)
	}

	strict := NewEngine(Config{PassThreshold: 0.7, MatchCutoff: 0.8, LooseGroups: false})
	report = strict.Score(dupTask(), response, index)
	if report.RawScore != 0 {
		t.Errorf("strict mode gave %v for inexact group", report.RawScore)
	}
}

func probTask() tasks.Instance {
	return tasks.Instance{
		Task: tasks.Task{
			ID:             "T14",
			Category:       "record_reconciliation",
			Metric:         tasks.MetricProbabilistic,
			ResponseFormat: map[string]string{"matches": "array"},
			Threshold:      0.7,
			Answer:         tasks.Answer{System: "ehr"},
		},
		Params: map[string]string{"patient_ehr_id": "MRN-100003"},
	}
}

func TestProbabilisticMatch(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	confident := map[string]any{"matches": []any{
		map[string]any{"ehr_id": "MRN-100003", "probability": 0.95},
	}}
	report := engine.Score(probTask(), confident, index)
	if report.RawScore != 1.0 || !report.Pass {
		t.Fatalf("confident correct match: raw=%v pass=%v", report.RawScore, report.Pass)
	}

	hedged := map[string]any{"matches": []any{
		map[string]any{"ehr_id": "MRN-100003", "probability": 0.4},
	}}
	report = engine.Score(probTask(), hedged, index)
	if report.RawScore != 0.25 {
		t.Errorf("hedged correct match: raw=%v, want 0.25", report.RawScore)
	}

	noisy := map[string]any{"matches": []any{
		map[string]any{"ehr_id": "MRN-100003", "probability": 0.95},
		map[string]any{"ehr_id": "MRN-100005", "probability": 0.9},
	}}
	report = engine.Score(probTask(), noisy, index)
	if report.RawScore != 0.5 {
		t.Errorf("one false high-confidence match: raw=%v, want 0.5", report.RawScore)
	}

	wrong := map[string]any{"matches": []any{
		map[string]any{"ehr_id": "MRN-100005", "probability": 0.95},
		map[string]any{"ehr_id": "MRN-100007", "probability": 0.95},
	}}
	report = engine.Score(probTask(), wrong, index)
	if report.RawScore != 0 {
		t.Errorf("all wrong: raw=%v, want 0", report.RawScore)
	}
}

func TestEngineDefaultsFalseMatchWeight(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(Config{PassThreshold: 0.7})

	// One correct confident match plus one false positive: the default
	// penalty must apply even when the config never set it.
	noisy := map[string]any{"matches": []any{
		map[string]any{"ehr_id": "MRN-100003", "probability": 0.95},
		map[string]any{"ehr_id": "MRN-100005", "probability": 0.9},
	}}
	report := engine.Score(probTask(), noisy, index)
	if report.RawScore != 0.5 {
		t.Errorf("false positive went unpenalized: raw=%v, want 0.5", report.RawScore)
	}
}

func TestMalformedResponses(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	report := engine.Score(rangeTask(), map[string]any{"count": 134.0}, index)
	if report.RawScore != 0 || report.Pass {
		t.Errorf("missing field scored raw=%v pass=%v", report.RawScore, report.Pass)
	}
	if report.Breakdown["error"] != "missing_field:patient_count" {
		t.Errorf("breakdown error = %v", report.Breakdown["error"])
	}

	report = engine.Score(rangeTask(), map[string]any{"patient_count": "many"}, index)
	if report.Breakdown["error"] != "wrong_type:patient_count" {
		t.Errorf("breakdown error = %v", report.Breakdown["error"])
	}

	report = engine.Score(setTask(), map[string]any{"patient_ids": []any{"MRN-100001", 5.0}}, index)
	if report.Breakdown["error"] != "wrong_type:patient_ids" {
		t.Errorf("breakdown error = %v", report.Breakdown["error"])
	}

	report = engine.Score(setTask(), nil, index)
	if report.RawScore != 0 || report.Breakdown["error"] == nil {
		t.Error("nil response must score zero with an error breakdown")
	}
}

func TestScoringIdempotent(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	response := map[string]any{"patient_ids": idList(index, 120)}
	first := engine.Score(setTask(), response, index)
	second := engine.Score(setTask(), response, index)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different reports:\n%+v\n%+v", first, second)
	}
}

func TestSummarize(t *testing.T) {
	index := fixtureIndex(t)
	engine := NewEngine(DefaultConfig())

	instances := []tasks.Instance{setTask(), rangeTask()}
	reports := []Report{
		engine.Score(instances[0], map[string]any{"patient_ids": idList(index, 134)}, index),
		engine.Score(instances[1], map[string]any{"count": 1.0}, index), // malformed
	}
	summary := Summarize(instances, reports)

	if summary.Tasks != 2 || summary.Passed != 1 || summary.Malformed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.OverallScore != 0.5 {
		t.Errorf("overall = %v, want 0.5", summary.OverallScore)
	}
	if cs := summary.Categories["cohort_identification"]; cs.Tasks != 2 {
		t.Errorf("category stats = %+v", cs)
	}
}
