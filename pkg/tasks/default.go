package tasks

// The built-in catalog. Count ranges mirror the default generation config;
// override via a catalog file when generating with custom cohort ranges.
func defaultCatalog() Catalog {
	return Catalog{Tasks: []Task{
		{
			ID:              "T01",
			Title:           "Count diabetic patients",
			Category:        "cohort_identification",
			Difficulty:      "easy",
			SystemsRequired: []string{"ehr"},
			MaxTurns:        10,
			Prompt: "Search the EHR system for all patients with a diagnosis of type 2 " +
				"diabetes mellitus (ICD-10 E11.9). Note that some conditions may be coded " +
				"with legacy ICD-9 codes. Respond with JSON: {\"patient_count\": <number>}.",
			Metric:         MetricRange,
			ResponseFormat: map[string]string{"patient_count": "number"},
			Answer:         Answer{Cohort: "diabetic", Low: 100, High: 160},
		},
		{
			ID:              "T02",
			Title:           "List diabetic patient MRNs",
			Category:        "cohort_identification",
			Difficulty:      "medium",
			SystemsRequired: []string{"ehr"},
			MaxTurns:        15,
			Prompt: "Identify every patient in the EHR system with type 2 diabetes " +
				"(ICD-10 E11.9 or its ICD-9 equivalent 250.00) and return their MRNs. " +
				"Respond with JSON: {\"patient_ids\": [\"MRN-...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"patient_ids": "string_array"},
			Threshold:      0.7,
			RecallGate:     0.9,
			Answer:         Answer{Cohort: "diabetic", System: "ehr"},
		},
		{
			ID:              "T03",
			Title:           "Count hypertensive patients",
			Category:        "cohort_identification",
			Difficulty:      "easy",
			SystemsRequired: []string{"ehr"},
			MaxTurns:        10,
			Prompt: "How many patients in the EHR system carry a diagnosis of essential " +
				"hypertension (ICD-10 I10)? Respond with JSON: {\"patient_count\": <number>}.",
			Metric:         MetricRange,
			ResponseFormat: map[string]string{"patient_count": "number"},
			Answer:         Answer{Cohort: "hypertensive", Low: 120, High: 190},
		},
		{
			ID:              "T04",
			Title:           "Patients on metformin",
			Category:        "cross_system_linkage",
			Difficulty:      "medium",
			SystemsRequired: []string{"ehr", "pharmacy"},
			MaxTurns:        15,
			Prompt: "Find every patient with an active metformin prescription in the " +
				"pharmacy system (RxNorm 860975) and report their EHR MRNs. The pharmacy " +
				"system uses its own RX- identifiers, so you will need to match patients " +
				"across systems by demographics. Respond with JSON: " +
				"{\"patient_ids\": [\"MRN-...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"patient_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Cohort: "on_metformin", System: "ehr"},
		},
		{
			ID:              "T05",
			Title:           "Count HbA1c-monitored patients",
			Category:        "cross_system_linkage",
			Difficulty:      "medium",
			SystemsRequired: []string{"lis"},
			MaxTurns:        10,
			Prompt: "How many distinct patients have at least one hemoglobin A1c result " +
				"(LOINC 4548-4) in the laboratory system? Respond with JSON: " +
				"{\"patient_count\": <number>}.",
			Metric:         MetricRange,
			ResponseFormat: map[string]string{"patient_count": "number"},
			Answer:         Answer{Cohort: "hba1c_monitored", Low: 80, High: 150},
		},
		{
			ID:              "T06",
			Title:           "Patient 360 view",
			Category:        "patient_360",
			Difficulty:      "hard",
			SystemsRequired: []string{"ehr", "lis", "ris", "pharmacy", "pas", "billing"},
			MaxTurns:        20,
			Prompt: "Build a complete cross-system view for the patient whose EHR MRN is " +
				"{patient_ehr_id}. Each of the six systems (ehr, lis, ris, pharmacy, pas, " +
				"billing) assigns its own identifier, and demographics may differ slightly " +
				"between systems. Respond with JSON: {\"system_ids\": {\"ehr\": \"...\", " +
				"\"lis\": \"...\", \"ris\": \"...\", \"pharmacy\": \"...\", \"pas\": " +
				"\"...\", \"billing\": \"...\"}}.",
			Metric:         MetricFieldMatch,
			ResponseFormat: map[string]string{"system_ids": "object"},
			Threshold:      0.8,
			SubjectIndex:   17,
			Answer:         Answer{},
		},
		{
			ID:              "T07",
			Title:           "Patient 360 view, noisy demographics",
			Category:        "patient_360",
			Difficulty:      "hard",
			SystemsRequired: []string{"ehr", "lis", "ris", "pharmacy", "pas", "billing"},
			MaxTurns:        20,
			Prompt: "Locate the patient with EHR MRN {patient_ehr_id} in all six systems. " +
				"Expect name variants (nicknames, typos, case differences) and partially " +
				"redacted or reformatted contact details. Respond with JSON: " +
				"{\"system_ids\": {\"ehr\": \"...\", \"lis\": \"...\", \"ris\": \"...\", " +
				"\"pharmacy\": \"...\", \"pas\": \"...\", \"billing\": \"...\"}}.",
			Metric:         MetricFieldMatch,
			ResponseFormat: map[string]string{"system_ids": "object"},
			Threshold:      0.8,
			SubjectIndex:   203,
			Answer:         Answer{},
		},
		{
			ID:              "T08",
			Title:           "Orphaned lab results",
			Category:        "data_quality",
			Difficulty:      "medium",
			SystemsRequired: []string{"lis"},
			MaxTurns:        15,
			Prompt: "Audit the laboratory system for orphaned results: Observation " +
				"resources that lack a basedOn reference to an ordering ServiceRequest. " +
				"Respond with JSON: {\"resource_ids\": [\"...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"resource_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Flag: "orphaned"},
		},
		{
			ID:              "T09",
			Title:           "Abandoned lab orders",
			Category:        "data_quality",
			Difficulty:      "medium",
			SystemsRequired: []string{"lis"},
			MaxTurns:        15,
			Prompt: "Find abandoned orders in the laboratory system: ServiceRequest " +
				"resources still in status active whose authoredOn date is more than 90 " +
				"days in the past. Respond with JSON: {\"resource_ids\": [\"...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"resource_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Flag: "abandoned"},
		},
		{
			ID:              "T10",
			Title:           "Future-dated records",
			Category:        "data_quality",
			Difficulty:      "medium",
			SystemsRequired: []string{"ehr", "lis", "ris", "pharmacy", "pas", "billing"},
			MaxTurns:        15,
			Prompt: "Identify clinical records anywhere in the six systems whose primary " +
				"date field lies in the future. Respond with JSON: " +
				"{\"resource_ids\": [\"...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"resource_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Flag: "future_dated"},
		},
		{
			ID:              "T11",
			Title:           "Legacy-coded conditions",
			Category:        "data_quality",
			Difficulty:      "medium",
			SystemsRequired: []string{"ehr"},
			MaxTurns:        15,
			Prompt: "List every Condition in the EHR system still carrying a legacy ICD-9 " +
				"code instead of ICD-10. Respond with JSON: " +
				"{\"resource_ids\": [\"...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"resource_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Flag: "legacy_code"},
		},
		{
			ID:              "T12",
			Title:           "Diabetics on metformin",
			Category:        "cross_system_linkage",
			Difficulty:      "hard",
			SystemsRequired: []string{"ehr", "pharmacy"},
			MaxTurns:        20,
			Prompt: "Report the EHR MRNs of patients who both have a type 2 diabetes " +
				"diagnosis in the EHR and an active metformin prescription in the pharmacy " +
				"system. Respond with JSON: {\"patient_ids\": [\"MRN-...\", ...]}.",
			Metric:         MetricSetF1,
			ResponseFormat: map[string]string{"patient_ids": "string_array"},
			Threshold:      0.7,
			Answer:         Answer{Cohort: "diabetic", IntersectCohort: "on_metformin", System: "ehr"},
		},
		{
			ID:              "T13",
			Title:           "Duplicate registrations in the EHR",
			Category:        "record_reconciliation",
			Difficulty:      "hard",
			SystemsRequired: []string{"ehr"},
			MaxTurns:        20,
			Prompt: "The EHR registry contains duplicate registrations: multiple MRNs for " +
				"the same real person, entered with slightly different demographics. Find " +
				"them. Respond with JSON: {\"duplicate_groups\": [{\"ids\": [\"MRN-...\", " +
				"\"MRN-...\"], \"confidence\": \"high\"|\"low\"}, ...]}.",
			Metric:         MetricDupGroups,
			ResponseFormat: map[string]string{"duplicate_groups": "array"},
			Threshold:      0.5,
			Answer:         Answer{System: "ehr", Low: 20, High: 90},
		},
		{
			ID:              "T14",
			Title:           "Probabilistic record match",
			Category:        "record_reconciliation",
			Difficulty:      "hard",
			SystemsRequired: []string{"ehr", "lis"},
			MaxTurns:        15,
			Prompt: "The laboratory record {patient_lis_id} must be linked to the EHR. " +
				"Propose candidate EHR MRNs with a match probability for each, based on " +
				"demographic similarity. Respond with JSON: {\"matches\": [{\"ehr_id\": " +
				"\"MRN-...\", \"probability\": 0.0-1.0}, ...]}.",
			Metric:         MetricProbabilistic,
			ResponseFormat: map[string]string{"matches": "array"},
			Threshold:      0.7,
			SubjectIndex:   411,
			Answer:         Answer{System: "ehr"},
		},
	}}
}
