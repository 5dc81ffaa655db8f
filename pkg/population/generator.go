package population

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/hdh-bench/platform/pkg/fhir"
	"github.com/hdh-bench/platform/pkg/identity"
)

// Generator produces the synthetic six-system population. All randomness
// flows through one seeded source, so a fixed seed yields byte-identical
// output across runs.
type Generator struct {
	cfg       Config
	tables    identity.Tables
	perturber *identity.Perturber
	rng       *rand.Rand
	refNow    time.Time

	idsSeen map[string]bool
	// canonical index -> system -> primary local id
	idMaps map[string][]string
	// cohort name -> person id -> member
	cohorts map[string]map[string]bool
}

func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tables, err := identity.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("load perturbation tables: %w", err)
	}
	refNow, err := time.Parse("2006-01-02", cfg.ReferenceDate)
	if err != nil {
		return nil, &ConfigError{Reason: "invalid reference_date " + cfg.ReferenceDate}
	}
	return &Generator{
		cfg:       cfg,
		tables:    tables,
		perturber: identity.NewPerturber(tables, cfg.PerturbRates),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		refNow:    refNow,
		idsSeen:   make(map[string]bool),
		idMaps:    make(map[string][]string),
		cohorts:   make(map[string]map[string]bool),
	}, nil
}

// Generate runs the full pipeline: persons, id maps, cohort admission,
// registry records (with duplicates), clinical resources and data-quality
// injection. Any error aborts before output is written.
func (g *Generator) Generate() (*Dataset, error) {
	persons := g.generatePersons()
	g.buildIDMaps()
	g.assignCohorts(persons)

	records := g.generateRecords(persons)
	resources := g.generateResources(persons)
	g.injectFutureDates(persons, resources)

	cohorts := make(map[string][]string, len(g.cohorts))
	for name, members := range g.cohorts {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		cohorts[name] = ids
	}

	return &Dataset{
		Seed:          g.cfg.Seed,
		ReferenceDate: g.cfg.ReferenceDate,
		Persons:       persons,
		Records:       records,
		Resources:     resources,
		Cohorts:       cohorts,
	}, nil
}

// CohortMembers returns the generated membership set for a cohort.
func (g *Generator) CohortMembers(name string) map[string]bool {
	return g.cohorts[name]
}

func (g *Generator) generatePersons() []identity.Person {
	persons := make([]identity.Person, 0, g.cfg.Patients)
	for i := 0; i < g.cfg.Patients; i++ {
		persons = append(persons, g.generatePerson(i))
	}
	return persons
}

func (g *Generator) generatePerson(index int) identity.Person {
	gender := "male"
	pool := g.tables.MaleNames
	if g.rng.Intn(2) == 1 {
		gender = "female"
		pool = g.tables.FemaleNames
	}

	person := identity.Person{
		PersonID:  fmt.Sprintf("person-%05d", index),
		FirstName: pool[g.rng.Intn(len(pool))],
		LastName:  g.tables.Surnames[g.rng.Intn(len(g.tables.Surnames))],
		Gender:    gender,
		BirthDate: fmt.Sprintf("%d-%02d-%02d",
			1940+g.rng.Intn(66), 1+g.rng.Intn(12), 1+g.rng.Intn(28)),
		SSNLast4: fmt.Sprintf("%04d", 1000+g.rng.Intn(9000)),
	}
	if g.rng.Float64() < 0.7 {
		person.MiddleName = pool[g.rng.Intn(len(pool))]
	}

	area := 200 + g.rng.Intn(800)
	exchange := 200 + g.rng.Intn(800)
	number := 1000 + g.rng.Intn(9000)
	person.Phone = fmt.Sprintf("(%d) %d-%d", area, exchange, number)

	cityIdx := g.rng.Intn(len(g.tables.Cities))
	person.Street = fmt.Sprintf("%d %s %s",
		1+g.rng.Intn(999),
		g.tables.Streets[g.rng.Intn(len(g.tables.Streets))],
		g.tables.StreetTypes[g.rng.Intn(len(g.tables.StreetTypes))])
	person.City = g.tables.Cities[cityIdx]
	person.State = "MA"
	person.Zip = g.tables.Zips[cityIdx]

	return person
}

// buildIDMaps shuffles suffixes per system so the canonical-index to
// local-id mapping carries no exploitable pattern across systems.
func (g *Generator) buildIDMaps() {
	for _, system := range Systems {
		cfg := systemConfigs[system]
		shuffled := make([]int, g.cfg.Patients)
		for i := range shuffled {
			shuffled[i] = i
		}
		g.rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		ids := make([]string, g.cfg.Patients)
		for canonical, suffix := range shuffled {
			ids[canonical] = fmt.Sprintf("%s%d", cfg.Prefix, cfg.Offset+suffix)
		}
		g.idMaps[system] = ids
	}
}

func (g *Generator) primaryID(personIndex int, system string) string {
	return g.idMaps[system][personIndex]
}

// assignCohorts admits members probabilistically while below the high
// bound, then tops up deterministically to the low bound. The resulting
// true count always lies inside [Low, High].
func (g *Generator) assignCohorts(persons []identity.Person) {
	for _, spec := range g.cfg.Cohorts {
		members := make(map[string]bool)
		boost := g.cohorts[spec.BoostCohort]
		for i := range persons {
			if len(members) >= spec.High {
				break
			}
			p := spec.Probability
			if boost != nil && boost[persons[i].PersonID] {
				p = spec.BoostProbability
			}
			if g.rng.Float64() < p {
				members[persons[i].PersonID] = true
			}
		}
		for i := 0; len(members) < spec.Low && i < len(persons); i++ {
			members[persons[i].PersonID] = true
		}
		g.cohorts[spec.Name] = members
	}
}

func (g *Generator) generateRecords(persons []identity.Person) []SystemRecord {
	var records []SystemRecord
	dupCount := make(map[string]int)

	for i := range persons {
		person := persons[i]
		for _, system := range Systems {
			records = append(records, SystemRecord{
				SystemName:   system,
				LocalID:      g.primaryID(i, system),
				PersonID:     person.PersonID,
				Origin:       OriginPrimary,
				Demographics: g.perturber.Perturb(person, system, g.cfg.Seed),
			})

			if g.rng.Float64() < g.cfg.DuplicateRate {
				cfg := systemConfigs[system]
				suffix := cfg.Offset + g.cfg.Patients + dupCount[system]
				dupCount[system]++
				records = append(records, SystemRecord{
					SystemName:   system,
					LocalID:      fmt.Sprintf("%s%d", cfg.Prefix, suffix),
					PersonID:     person.PersonID,
					Origin:       OriginDuplicate,
					Demographics: g.perturber.GenerateDuplicate(person, system, g.cfg.Seed),
				})
			}
		}
	}
	return records
}

func (g *Generator) generateResources(persons []identity.Person) []ClinicalResource {
	var resources []ClinicalResource
	add := func(r ClinicalResource) {
		resources = append(resources, r)
	}

	for i := range persons {
		person := persons[i]
		ehrID := g.primaryID(i, "ehr")
		lisID := g.primaryID(i, "lis")
		risID := g.primaryID(i, "ris")
		pharmacyID := g.primaryID(i, "pharmacy")
		pasID := g.primaryID(i, "pas")
		billingID := g.primaryID(i, "billing")

		conditionCodes := g.emitCohortConditions(person, ehrID, add)
		conditionCodes = append(conditionCodes, g.emitBackgroundConditions(person, ehrID, add)...)
		g.emitMedications(person, pharmacyID, conditionCodes, add)
		g.emitLabs(person, lisID, add)
		g.emitImaging(person, risID, add)
		encounters := g.emitEncounters(person, pasID, add)
		g.emitClaims(person, billingID, encounters, add)
		g.emitQualityIssues(person, lisID, add)
	}
	return resources
}

func (g *Generator) emitCohortConditions(person identity.Person, ehrID string, add func(ClinicalResource)) []string {
	var codes []string
	if g.cohorts["diabetic"][person.PersonID] {
		add(g.condition(person, ehrID, CodeDiabetes, conditionDisplay[CodeDiabetes], "diabetic"))
		codes = append(codes, CodeDiabetes)
	}
	if g.cohorts["hypertensive"][person.PersonID] {
		add(g.condition(person, ehrID, CodeHypertension, conditionDisplay[CodeHypertension], "hypertensive"))
		codes = append(codes, CodeHypertension)
	}
	return codes
}

func (g *Generator) emitBackgroundConditions(person identity.Person, ehrID string, add func(ClinicalResource)) []string {
	var codes []string
	for _, cc := range backgroundConditions {
		if g.rng.Float64() < cc.Prevalence {
			add(g.condition(person, ehrID, cc.ICD10, cc.Display, ""))
			codes = append(codes, cc.ICD10)
		}
	}
	return codes
}

// condition emits an EHR condition, downgrading to the legacy ICD-9 coding
// with the configured fraction when a mapping exists.
func (g *Generator) condition(person identity.Person, ehrID, icd10, display, cohort string) ClinicalResource {
	coding := fhir.Coding{System: CodeSystemICD10, Code: icd10, Display: display}
	var flags []string
	var note []fhir.Annotation

	if g.rng.Float64() < g.cfg.LegacyCodeFraction {
		for _, legacy := range legacyConditions {
			if legacy.ICD10 == icd10 {
				coding = fhir.Coding{System: CodeSystemICD9, Code: legacy.ICD9}
				flags = append(flags, FlagLegacyCode)
				note = []fhir.Annotation{{Text: "Migrated from legacy system"}}
				break
			}
		}
	}

	onset := g.randomDate(365*5, 30)
	resource := &fhir.Resource{
		ResourceType: "Condition",
		ID:           g.resourceID("cond"),
		ClinicalStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/condition-clinical", Code: "active",
		}}},
		VerificationStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: "http://terminology.hl7.org/CodeSystem/condition-ver-status", Code: "confirmed",
		}}},
		Code:          &fhir.CodeableConcept{Coding: []fhir.Coding{coding}, Text: display},
		Subject:       &fhir.Reference{Reference: "Patient/" + ehrID},
		OnsetDateTime: onset,
		RecordedDate:  onset,
		Note:          note,
	}
	return ClinicalResource{
		Resource:     resource,
		SystemName:   "ehr",
		PersonID:     person.PersonID,
		Kind:         "condition",
		Cohort:       cohort,
		QualityFlags: flags,
	}
}

func (g *Generator) emitMedications(person identity.Person, pharmacyID string, conditionCodes []string, add func(ClinicalResource)) {
	if g.cohorts["on_metformin"][person.PersonID] {
		add(g.medication(person, pharmacyID, CodeMetformin, "Metformin 500 MG Oral Tablet", "on_metformin"))
	}
	indicated := make(map[string]bool, len(conditionCodes))
	for _, code := range conditionCodes {
		indicated[code] = true
	}
	for _, med := range backgroundMedications {
		prob := med.Prevalence
		for _, ind := range med.Indications {
			if indicated[ind] {
				prob = min(0.8, prob*3)
				break
			}
		}
		if g.rng.Float64() < prob {
			add(g.medication(person, pharmacyID, med.RxNorm, med.Display, ""))
		}
	}
}

func (g *Generator) medication(person identity.Person, pharmacyID, rxnorm, display, cohort string) ClinicalResource {
	resource := &fhir.Resource{
		ResourceType: "MedicationRequest",
		ID:           g.resourceID("med"),
		Status:       "active",
		Intent:       "order",
		MedicationCodeableConcept: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: CodeSystemRxNorm, Code: rxnorm, Display: display}},
			Text:   display,
		},
		Subject:           &fhir.Reference{Reference: "Patient/" + pharmacyID},
		AuthoredOn:        g.randomDate(365, 0),
		DosageInstruction: []fhir.Dosage{{Text: dosageInstructions[g.rng.Intn(len(dosageInstructions))]}},
	}
	return ClinicalResource{
		Resource:   resource,
		SystemName: "pharmacy",
		PersonID:   person.PersonID,
		Kind:       "medication",
		Cohort:     cohort,
	}
}

func (g *Generator) emitLabs(person identity.Person, lisID string, add func(ClinicalResource)) {
	panels := make([]labPanel, 0, 3)
	if g.cohorts["hba1c_monitored"][person.PersonID] {
		panels = append(panels, hba1cPanel)
	}
	numExtra := g.rng.Intn(3)
	for _, idx := range g.rng.Perm(len(labPanels))[:numExtra] {
		panels = append(panels, labPanels[idx])
	}

	for _, panel := range panels {
		orderDate := g.randomDate(180, 0)
		orderID := g.resourceID("labord")
		cohort := ""
		if panel.LOINC == hba1cPanel.LOINC {
			cohort = "hba1c_monitored"
		}
		add(ClinicalResource{
			Resource: &fhir.Resource{
				ResourceType: "ServiceRequest",
				ID:           orderID,
				Status:       "completed",
				Intent:       "order",
				Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
					System: CodeSystemLOINC, Code: panel.LOINC, Display: panel.Name,
				}}},
				Subject:    &fhir.Reference{Reference: "Patient/" + lisID},
				AuthoredOn: orderDate,
			},
			SystemName: "lis",
			PersonID:   person.PersonID,
			Kind:       "lab_order",
			Cohort:     cohort,
		})

		for _, test := range panel.Tests {
			add(g.labResult(person, lisID, orderID, orderDate, test, cohort))
		}
	}
}

func (g *Generator) labResult(person identity.Person, lisID, orderID, orderDate string, test labTest, cohort string) ClinicalResource {
	var value float64
	if g.rng.Float64() < 0.8 {
		value = round1(test.Low + g.rng.Float64()*(test.High-test.Low))
	} else if g.rng.Float64() < 0.5 {
		value = round1(test.Low - (0.1+0.9*g.rng.Float64())*test.StdDev)
	} else {
		value = round1(test.High + (0.1+0.9*g.rng.Float64())*test.StdDev)
	}

	interpretation := "N"
	if value < test.Low {
		interpretation = "L"
	} else if value > test.High {
		interpretation = "H"
	}

	resource := &fhir.Resource{
		ResourceType: "Observation",
		ID:           g.resourceID("labres"),
		Status:       "final",
		Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: CodeSystemLOINC, Code: test.LOINC, Display: test.Name,
		}}},
		Subject:           &fhir.Reference{Reference: "Patient/" + lisID},
		BasedOn:           []fhir.Reference{{Reference: "ServiceRequest/" + orderID}},
		EffectiveDateTime: orderDate,
		ValueQuantity:     &fhir.Quantity{Value: value, Unit: test.Unit},
		ReferenceRange: []fhir.ReferenceRange{{
			Low:  &fhir.RangeBound{Value: test.Low},
			High: &fhir.RangeBound{Value: test.High},
		}},
		Interpretation: []fhir.CodeableConcept{{Coding: []fhir.Coding{{Code: interpretation}}}},
	}
	return ClinicalResource{
		Resource:   resource,
		SystemName: "lis",
		PersonID:   person.PersonID,
		Kind:       "lab_result",
		Cohort:     cohort,
	}
}

func (g *Generator) emitImaging(person identity.Person, risID string, add func(ClinicalResource)) {
	for _, study := range imagingStudies {
		if g.rng.Float64() < study.Prevalence {
			add(ClinicalResource{
				Resource: &fhir.Resource{
					ResourceType: "ServiceRequest",
					ID:           g.resourceID("imgord"),
					Status:       "completed",
					Intent:       "order",
					Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
						System: CodeSystemLOINC, Code: study.LOINC, Display: study.Name,
					}}},
					Subject:    &fhir.Reference{Reference: "Patient/" + risID},
					AuthoredOn: g.randomDate(365, 0),
				},
				SystemName: "ris",
				PersonID:   person.PersonID,
				Kind:       "imaging_order",
			})
		}
	}
}

func (g *Generator) emitEncounters(person identity.Person, pasID string, add func(ClinicalResource)) []*fhir.Resource {
	count := 1 + g.rng.Intn(5)
	encounters := make([]*fhir.Resource, 0, count)
	for j := 0; j < count; j++ {
		start := g.refNow.AddDate(0, 0, -(30 + g.rng.Intn(336)))
		end := start.AddDate(0, 0, g.rng.Intn(6))
		resource := &fhir.Resource{
			ResourceType: "Encounter",
			ID:           g.resourceID("enc"),
			Status:       "finished",
			Class:        &fhir.Coding{Code: g.encounterClass()},
			Subject:      &fhir.Reference{Reference: "Patient/" + pasID},
			Period: &fhir.Period{
				Start: start.Format(dateTimeLayout),
				End:   end.Format(dateTimeLayout),
			},
		}
		encounters = append(encounters, resource)
		add(ClinicalResource{
			Resource:   resource,
			SystemName: "pas",
			PersonID:   person.PersonID,
			Kind:       "encounter",
		})
	}
	return encounters
}

func (g *Generator) encounterClass() string {
	r := g.rng.Float64()
	cum := 0.0
	for _, ec := range encounterClasses {
		cum += ec.Weight
		if r < cum {
			return ec.Code
		}
	}
	return encounterClasses[len(encounterClasses)-1].Code
}

func (g *Generator) emitClaims(person identity.Person, billingID string, encounters []*fhir.Resource, add func(ClinicalResource)) {
	for _, encounter := range encounters {
		if g.rng.Float64() >= 0.6 {
			continue
		}
		add(ClinicalResource{
			Resource: &fhir.Resource{
				ResourceType: "Claim",
				ID:           g.resourceID("claim"),
				Status:       "active",
				Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
					System: "http://terminology.hl7.org/CodeSystem/claim-type",
					Code:   claimType(encounter),
				}}},
				Patient: &fhir.Reference{Reference: "Patient/" + billingID},
				Created: encounter.Period.End,
				Total:   &fhir.Money{Value: round1(100 + g.rng.Float64()*4900), Currency: "USD"},
			},
			SystemName: "billing",
			PersonID:   person.PersonID,
			Kind:       "claim",
		})
	}
}

func claimType(encounter *fhir.Resource) string {
	if encounter.Class != nil && encounter.Class.Code == "IMP" {
		return "institutional"
	}
	return "professional"
}

// emitQualityIssues injects the deliberate LIS breakage: orphaned results
// and abandoned orders, anchored to the person's real LIS record so the
// only referential gaps in the dataset are the tagged ones.
func (g *Generator) emitQualityIssues(person identity.Person, lisID string, add func(ClinicalResource)) {
	if g.rng.Float64() < g.cfg.OrphanRate {
		add(ClinicalResource{
			Resource: &fhir.Resource{
				ResourceType: "Observation",
				ID:           g.resourceID("labres"),
				Status:       "final",
				Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
					System: CodeSystemLOINC, Code: "2345-7", Display: "Glucose",
				}}},
				Subject:           &fhir.Reference{Reference: "Patient/" + lisID},
				EffectiveDateTime: g.randomDate(365, 30),
				ValueQuantity:     &fhir.Quantity{Value: float64(70 + g.rng.Intn(131)), Unit: "mg/dL"},
			},
			SystemName:   "lis",
			PersonID:     person.PersonID,
			Kind:         "lab_result",
			QualityFlags: []string{FlagOrphaned},
		})
	}

	if g.rng.Float64() < g.cfg.AbandonedRate {
		staleDays := g.cfg.StalenessDays + 1 + g.rng.Intn(250)
		add(ClinicalResource{
			Resource: &fhir.Resource{
				ResourceType: "ServiceRequest",
				ID:           g.resourceID("labord"),
				Status:       "active",
				Intent:       "order",
				Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{
					System: CodeSystemLOINC, Code: "58410-2", Display: "Complete Blood Count",
				}}},
				Subject:    &fhir.Reference{Reference: "Patient/" + lisID},
				AuthoredOn: g.refNow.AddDate(0, 0, -staleDays).Format(dateTimeLayout),
			},
			SystemName:   "lis",
			PersonID:     person.PersonID,
			Kind:         "lab_order",
			QualityFlags: []string{FlagAbandoned},
		})
	}
}

// injectFutureDates pushes one resource per selected person past the
// dataset's reference now, simulating data entry errors. Resources already
// carrying a quality flag are exempt: moving an abandoned order's date
// forward would make it no longer stale, contradicting its own tag.
func (g *Generator) injectFutureDates(persons []identity.Person, resources []ClinicalResource) {
	byPerson := make(map[string][]int)
	for i := range resources {
		if len(resources[i].QualityFlags) > 0 {
			continue
		}
		byPerson[resources[i].PersonID] = append(byPerson[resources[i].PersonID], i)
	}
	for i := range persons {
		if g.rng.Float64() >= g.cfg.FutureDateRate {
			continue
		}
		indices := byPerson[persons[i].PersonID]
		if len(indices) == 0 {
			continue
		}
		idx := indices[g.rng.Intn(len(indices))]
		future := g.refNow.AddDate(0, 0, 5+g.rng.Intn(116)).Format(dateTimeLayout)
		cr := &resources[idx]
		switch cr.Resource.ResourceType {
		case "Condition":
			cr.Resource.RecordedDate = future
		case "Observation":
			cr.Resource.EffectiveDateTime = future
		case "ServiceRequest", "MedicationRequest":
			cr.Resource.AuthoredOn = future
		case "Encounter":
			cr.Resource.Period.Start = future
			cr.Resource.Period.End = future
		case "Claim":
			cr.Resource.Created = future
		}
		cr.QualityFlags = append(cr.QualityFlags, FlagFutureDated)
	}
}

const dateTimeLayout = "2006-01-02T15:04:05Z"

func (g *Generator) randomDate(daysAgoMax, daysAgoMin int) string {
	days := daysAgoMin + g.rng.Intn(daysAgoMax-daysAgoMin+1)
	return g.refNow.AddDate(0, 0, -days).Format(dateTimeLayout)
}

// resourceID draws an 8-hex-digit id from the seeded source, retrying on
// the rare collision so ids stay unique without a global counter pattern.
func (g *Generator) resourceID(prefix string) string {
	for {
		id := fmt.Sprintf("%s-%08x", prefix, g.rng.Uint32())
		if !g.idsSeen[id] {
			g.idsSeen[id] = true
			return id
		}
	}
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
