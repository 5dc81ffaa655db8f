package population

// Clinical code tables. Static lookup data in table form so realism tweaks
// stay out of the generation logic.

const (
	CodeSystemICD10  = "http://hl7.org/fhir/sid/icd-10-cm"
	CodeSystemICD9   = "http://hl7.org/fhir/sid/icd-9-cm"
	CodeSystemLOINC  = "http://loinc.org"
	CodeSystemRxNorm = "http://www.nlm.nih.gov/research/umls/rxnorm"
)

const (
	CodeDiabetes       = "E11.9"
	CodeDiabetesLegacy = "250.00"
	CodeHypertension   = "I10"
	CodeMetformin      = "860975"
	CodeHbA1c          = "4548-4"
)

type conditionCode struct {
	ICD10      string
	Display    string
	Prevalence float64
}

// Background conditions, cohort-driving codes excluded; those are emitted
// by cohort membership instead so the configured ranges hold.
var backgroundConditions = []conditionCode{
	{"E78.5", "Hyperlipidemia, unspecified", 0.10},
	{"J44.9", "COPD, unspecified", 0.04},
	{"J45.909", "Unspecified asthma, uncomplicated", 0.05},
	{"K21.0", "GERD with esophagitis", 0.06},
	{"M54.5", "Low back pain", 0.08},
	{"F32.9", "Major depressive disorder, single episode", 0.07},
	{"F41.9", "Anxiety disorder, unspecified", 0.06},
	{"I48.91", "Unspecified atrial fibrillation", 0.03},
	{"N18.3", "Chronic kidney disease, stage 3", 0.02},
	{"E03.9", "Hypothyroidism, unspecified", 0.04},
	{"G47.33", "Obstructive sleep apnea", 0.03},
	{"M17.11", "Primary osteoarthritis, right knee", 0.03},
	{"I25.10", "Atherosclerotic heart disease", 0.02},
}

var conditionDisplay = map[string]string{
	CodeDiabetes:     "Type 2 diabetes mellitus without complications",
	CodeHypertension: "Essential (primary) hypertension",
}

type legacyMapping struct {
	ICD9    string
	ICD10   string
	Display string
}

var legacyConditions = []legacyMapping{
	{"250.00", "E11.9", "Diabetes mellitus"},
	{"401.9", "I10", "Hypertension"},
	{"272.4", "E78.5", "Hyperlipidemia"},
	{"496", "J44.9", "COPD"},
	{"493.90", "J45.909", "Asthma"},
	{"530.81", "K21.0", "GERD"},
	{"724.2", "M54.5", "Low back pain"},
	{"311", "F32.9", "Depression"},
	{"300.00", "F41.9", "Anxiety"},
	{"427.31", "I48.91", "AFib"},
}

type medicationCode struct {
	RxNorm      string
	Display     string
	Indications []string
	Prevalence  float64
}

var backgroundMedications = []medicationCode{
	{"314076", "Lisinopril 10 MG Oral Tablet", []string{"I10"}, 0.12},
	{"617311", "Atorvastatin 20 MG Oral Tablet", []string{"E78.5"}, 0.11},
	{"197361", "Amlodipine 5 MG Oral Tablet", []string{"I10"}, 0.08},
	{"198048", "Omeprazole 20 MG Capsule", []string{"K21.0"}, 0.09},
	{"966247", "Levothyroxine 50 MCG Tablet", []string{"E03.9"}, 0.06},
	{"745679", "Albuterol Inhalation Solution", []string{"J45.909"}, 0.05},
	{"310430", "Gabapentin 300 MG Capsule", []string{"M54.5"}, 0.04},
	{"312940", "Sertraline 50 MG Tablet", []string{"F32.9", "F41.9"}, 0.06},
	{"310798", "Hydrochlorothiazide 25 MG Tablet", []string{"I10"}, 0.05},
}

var dosageInstructions = []string{
	"Take 1 tablet by mouth once daily",
	"Take 1 tablet by mouth twice daily with food",
	"Take 2 tablets by mouth at bedtime",
	"Take 1 tablet by mouth every morning",
	"Take 1 tablet by mouth every 12 hours",
	"Take 1 capsule by mouth three times daily with meals",
	"Take 1 tablet by mouth once daily in the morning",
	"Take 1-2 tablets by mouth every 4-6 hours as needed for pain",
}

type labTest struct {
	LOINC  string
	Name   string
	Unit   string
	Low    float64
	High   float64
	StdDev float64
}

type labPanel struct {
	LOINC string
	Name  string
	Tests []labTest
}

var labPanels = []labPanel{
	{
		LOINC: "24323-8",
		Name:  "Comprehensive Metabolic Panel",
		Tests: []labTest{
			{"2345-7", "Glucose", "mg/dL", 70, 100, 15},
			{"2160-0", "Creatinine", "mg/dL", 0.7, 1.3, 0.3},
			{"3094-0", "BUN", "mg/dL", 7, 20, 5},
			{"2951-2", "Sodium", "mmol/L", 136, 145, 3},
			{"2823-3", "Potassium", "mmol/L", 3.5, 5.0, 0.5},
		},
	},
	{
		LOINC: "58410-2",
		Name:  "Complete Blood Count",
		Tests: []labTest{
			{"6690-2", "WBC", "K/uL", 4.5, 11.0, 2.0},
			{"789-8", "RBC", "M/uL", 4.5, 5.5, 0.5},
			{"718-7", "Hemoglobin", "g/dL", 12.0, 17.5, 1.5},
			{"777-3", "Platelets", "K/uL", 150, 400, 50},
		},
	},
	{
		LOINC: "2093-3",
		Name:  "Lipid Panel",
		Tests: []labTest{
			{"2093-3", "Total Cholesterol", "mg/dL", 0, 200, 40},
			{"2571-8", "Triglycerides", "mg/dL", 0, 150, 50},
			{"2085-9", "HDL", "mg/dL", 40, 60, 15},
		},
	},
}

var hba1cPanel = labPanel{
	LOINC: "4548-4",
	Name:  "Hemoglobin A1c",
	Tests: []labTest{{"4548-4", "HbA1c", "%", 4.0, 5.6, 1.5}},
}

type imagingStudy struct {
	LOINC      string
	Name       string
	Prevalence float64
}

var imagingStudies = []imagingStudy{
	{"36643-5", "XR Chest 2 Views", 0.20},
	{"24627-2", "CT Chest", 0.05},
	{"24590-2", "MR Brain", 0.03},
	{"24558-9", "US Abdomen", 0.08},
}

type encounterClass struct {
	Code   string
	Weight float64
}

var encounterClasses = []encounterClass{
	{"AMB", 0.6},
	{"EMER", 0.15},
	{"IMP", 0.1},
	{"OBSENC", 0.15},
}
