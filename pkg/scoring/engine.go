package scoring

import (
	"sort"

	"github.com/hdh-bench/platform/pkg/mpi"
	"github.com/hdh-bench/platform/pkg/population"
	"github.com/hdh-bench/platform/pkg/tasks"
)

// Report is the scored outcome of one task. Breakdown carries per-component
// scores (or an "error" entry for malformed responses); Evidence carries the
// counts and ids the score was computed from, for auditability.
type Report struct {
	TaskID    string         `json:"task_id"`
	RawScore  float64        `json:"raw_score"`
	Pass      bool           `json:"pass"`
	Breakdown map[string]any `json:"metric_breakdown"`
	Evidence  map[string]any `json:"evidence,omitempty"`
}

type Config struct {
	// Fallback pass threshold for tasks that declare none.
	PassThreshold float64
	// Probability at or above which a proposed match counts as asserted.
	MatchCutoff float64
	// Penalty per wrong high-confidence match, as a fraction of full credit.
	FalseMatchWeight float64
	// Grant half credit for duplicate groups with >=50% member overlap.
	LooseGroups bool
}

func DefaultConfig() Config {
	return Config{
		PassThreshold:    0.7,
		MatchCutoff:      0.8,
		FalseMatchWeight: 0.5,
		LooseGroups:      true,
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = 0.7
	}
	if cfg.MatchCutoff == 0 {
		cfg.MatchCutoff = 0.8
	}
	if cfg.FalseMatchWeight == 0 {
		cfg.FalseMatchWeight = 0.5
	}
	return &Engine{cfg: cfg}
}

// Score evaluates one agent response against ground truth. It never fails:
// a malformed response scores 0.0 with the reason in the breakdown, so one
// bad answer cannot abort a run.
func (e *Engine) Score(inst tasks.Instance, response map[string]any, idx *mpi.Index) Report {
	report := Report{
		TaskID:    inst.Task.ID,
		Breakdown: make(map[string]any),
		Evidence:  make(map[string]any),
	}

	if response == nil {
		report.Breakdown["error"] = "missing_response"
		return report
	}
	if reason := validate(inst.Task.ResponseFormat, response); reason != "" {
		report.Breakdown["error"] = reason
		return report
	}

	switch inst.Task.Metric {
	case tasks.MetricSetF1:
		e.scoreSetF1(inst, response, idx, &report)
	case tasks.MetricRange:
		e.scoreRange(inst, response, &report)
	case tasks.MetricFieldMatch:
		e.scoreFieldMatch(inst, response, idx, &report)
	case tasks.MetricDupGroups:
		e.scoreDupGroups(inst, response, idx, &report)
	case tasks.MetricProbabilistic:
		e.scoreProbabilistic(inst, response, idx, &report)
	default:
		report.Breakdown["error"] = "unknown_metric:" + inst.Task.Metric
	}
	return report
}

func (e *Engine) threshold(task tasks.Task) float64 {
	if task.Threshold > 0 {
		return task.Threshold
	}
	return e.cfg.PassThreshold
}

func (e *Engine) scoreSetF1(inst tasks.Instance, response map[string]any, idx *mpi.Index, report *Report) {
	truth := truthSet(inst.Task.Answer, idx)
	claimed := stringSet(response[listKey(inst.Task.ResponseFormat)])

	hits := 0
	for id := range claimed {
		if truth[id] {
			hits++
		}
	}

	var precision, recall, f1 float64
	if len(claimed) > 0 {
		precision = float64(hits) / float64(len(claimed))
	}
	if len(truth) > 0 {
		recall = float64(hits) / float64(len(truth))
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	report.RawScore = f1
	report.Pass = f1 >= e.threshold(inst.Task) &&
		(inst.Task.RecallGate == 0 || recall >= inst.Task.RecallGate)
	report.Breakdown["precision"] = precision
	report.Breakdown["recall"] = recall
	report.Breakdown["f1"] = f1
	report.Evidence["true_count"] = len(truth)
	report.Evidence["claimed_count"] = len(claimed)
	report.Evidence["correct_count"] = hits
}

func truthSet(answer tasks.Answer, idx *mpi.Index) map[string]bool {
	truth := make(map[string]bool)
	switch {
	case answer.Flag != "":
		for _, id := range idx.QualityIDs(answer.Flag) {
			truth[id] = true
		}
	case answer.IntersectCohort != "":
		other := make(map[string]bool)
		for _, personID := range idx.Cohorts[answer.IntersectCohort] {
			other[personID] = true
		}
		for _, personID := range idx.Cohorts[answer.Cohort] {
			if other[personID] {
				truth[idx.PrimaryID(personID, answer.System)] = true
			}
		}
	default:
		for _, id := range idx.CohortPrimaryIDs(answer.Cohort, answer.System) {
			truth[id] = true
		}
	}
	delete(truth, "")
	return truth
}

func (e *Engine) scoreRange(inst tasks.Instance, response map[string]any, report *Report) {
	count, _ := asNumber(response[numberKey(inst.Task.ResponseFormat)])
	low := float64(inst.Task.Answer.Low)
	high := float64(inst.Task.Answer.High)

	if count >= low && count <= high {
		report.RawScore = 1.0
		report.Pass = true
	} else {
		width := high - low
		if width <= 0 {
			width = 1
		}
		distance := low - count
		if count > high {
			distance = count - high
		}
		score := 1 - distance/width
		if score < 0 {
			score = 0
		}
		report.RawScore = score
	}
	report.Breakdown["in_range"] = boolToFloat(report.Pass)
	report.Evidence["reported_count"] = count
	report.Evidence["expected_low"] = inst.Task.Answer.Low
	report.Evidence["expected_high"] = inst.Task.Answer.High
}

// scoreFieldMatch checks the claimed local id per system against the
// subject's true ids. Any id belonging to the subject in that system is
// accepted, so a duplicate registration found instead of the primary still
// counts.
func (e *Engine) scoreFieldMatch(inst tasks.Instance, response map[string]any, idx *mpi.Index, report *Report) {
	personID := idx.PersonBySystemID("ehr", inst.Params["patient_ehr_id"])
	if personID == "" {
		report.Breakdown["error"] = "unknown_subject"
		return
	}

	claimed, _ := response["system_ids"].(map[string]any)
	systems := population.Systems

	correct := 0
	for _, system := range systems {
		claimedID, _ := claimed[system].(string)
		hit := false
		for _, id := range idx.AllIDs(personID, system) {
			if claimedID == id {
				hit = true
				break
			}
		}
		if hit {
			correct++
		}
		report.Breakdown[system] = boolToFloat(hit)
	}

	report.RawScore = float64(correct) / float64(len(systems))
	report.Pass = report.RawScore >= e.threshold(inst.Task)
	report.Evidence["correct_systems"] = correct
	report.Evidence["total_systems"] = len(systems)
}

// scoreDupGroups scores claimed groups with group-level F1: exact member-set
// match earns full credit, >=50% overlap half credit in loose mode. Each
// true group may be consumed once. The pass additionally gates on the true
// group count falling in the task's range, since agents may legitimately
// report a valid subset.
func (e *Engine) scoreDupGroups(inst tasks.Instance, response map[string]any, idx *mpi.Index, report *Report) {
	var truthGroups []map[string]bool
	for _, group := range idx.DuplicateGroups {
		if inst.Task.Answer.System != "" && group.SystemName != inst.Task.Answer.System {
			continue
		}
		members := make(map[string]bool, len(group.LocalIDs))
		for _, id := range group.LocalIDs {
			members[id] = true
		}
		truthGroups = append(truthGroups, members)
	}

	claimedRaw, _ := response["duplicate_groups"].([]any)
	consumed := make([]bool, len(truthGroups))
	var credit float64
	exact, partial := 0, 0

	for _, raw := range claimedRaw {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		claimed := stringSet(obj["ids"])
		if len(claimed) < 2 {
			continue
		}
		bestIdx, bestCredit := -1, 0.0
		for i, truth := range truthGroups {
			if consumed[i] {
				continue
			}
			c := groupCredit(claimed, truth, e.cfg.LooseGroups)
			if c > bestCredit {
				bestIdx, bestCredit = i, c
			}
		}
		if bestIdx >= 0 {
			consumed[bestIdx] = true
			credit += bestCredit
			if bestCredit == 1.0 {
				exact++
			} else {
				partial++
			}
		}
	}

	var precision, recall, f1 float64
	if len(claimedRaw) > 0 {
		precision = credit / float64(len(claimedRaw))
	}
	if len(truthGroups) > 0 {
		recall = credit / float64(len(truthGroups))
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	countOK := len(truthGroups) >= inst.Task.Answer.Low &&
		(inst.Task.Answer.High == 0 || len(truthGroups) <= inst.Task.Answer.High)

	report.RawScore = f1
	report.Pass = f1 >= e.threshold(inst.Task) && countOK
	report.Breakdown["precision"] = precision
	report.Breakdown["recall"] = recall
	report.Breakdown["exact_matches"] = float64(exact)
	report.Breakdown["partial_matches"] = float64(partial)
	report.Evidence["true_groups"] = len(truthGroups)
	report.Evidence["claimed_groups"] = len(claimedRaw)
}

func groupCredit(claimed, truth map[string]bool, loose bool) float64 {
	overlap := 0
	for id := range claimed {
		if truth[id] {
			overlap++
		}
	}
	if overlap == len(truth) && len(claimed) == len(truth) {
		return 1.0
	}
	if loose && float64(overlap) >= 0.5*float64(len(truth)) {
		return 0.5
	}
	return 0
}

// scoreProbabilistic rewards calibration: the correct id asserted at or
// above the confidence cutoff earns full credit, below it quarter credit,
// and every wrong assertion above the cutoff costs a penalty.
func (e *Engine) scoreProbabilistic(inst tasks.Instance, response map[string]any, idx *mpi.Index, report *Report) {
	personID := idx.PersonBySystemID("ehr", inst.Params["patient_ehr_id"])
	if personID == "" {
		report.Breakdown["error"] = "unknown_subject"
		return
	}
	truth := make(map[string]bool)
	for _, id := range idx.AllIDs(personID, inst.Task.Answer.System) {
		truth[id] = true
	}

	matchesRaw, _ := response["matches"].([]any)
	var credit float64
	falsePositives := 0
	for _, raw := range matchesRaw {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := obj["ehr_id"].(string)
		probability, _ := asNumber(obj["probability"])
		switch {
		case truth[id] && probability >= e.cfg.MatchCutoff:
			if credit < 1.0 {
				credit = 1.0
			}
		case truth[id]:
			if credit < 0.25 {
				credit = 0.25
			}
		case probability >= e.cfg.MatchCutoff:
			falsePositives++
		}
	}

	score := credit - e.cfg.FalseMatchWeight*float64(falsePositives)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	report.RawScore = score
	report.Pass = score >= e.threshold(inst.Task)
	report.Breakdown["true_positive_credit"] = credit
	report.Breakdown["false_positives"] = float64(falsePositives)
	report.Evidence["candidates_proposed"] = len(matchesRaw)
	report.Evidence["confidence_cutoff"] = e.cfg.MatchCutoff
}

// validate checks required keys and primitive types before any metric runs.
// The returned reason is empty when the response is well formed.
func validate(format map[string]string, response map[string]any) string {
	for _, field := range sortedKeys(format) {
		value, ok := response[field]
		if !ok || value == nil {
			return "missing_field:" + field
		}
		switch format[field] {
		case "number":
			if _, ok := asNumber(value); !ok {
				return "wrong_type:" + field
			}
		case "string":
			if _, ok := value.(string); !ok {
				return "wrong_type:" + field
			}
		case "string_array":
			list, ok := value.([]any)
			if !ok {
				return "wrong_type:" + field
			}
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return "wrong_type:" + field
				}
			}
		case "array":
			if _, ok := value.([]any); !ok {
				return "wrong_type:" + field
			}
		case "object":
			if _, ok := value.(map[string]any); !ok {
				return "wrong_type:" + field
			}
		}
	}
	return ""
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func stringSet(value any) map[string]bool {
	set := make(map[string]bool)
	list, _ := value.([]any)
	for _, item := range list {
		if s, ok := item.(string); ok {
			set[s] = true
		}
	}
	return set
}

func listKey(format map[string]string) string {
	for _, key := range sortedKeys(format) {
		if format[key] == "string_array" {
			return key
		}
	}
	return ""
}

func numberKey(format map[string]string) string {
	for _, key := range sortedKeys(format) {
		if format[key] == "number" {
			return key
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
