package population

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hdh-bench/platform/pkg/fhir"
	"github.com/hdh-bench/platform/pkg/identity"
)

// The six target systems, in generation order. Order matters: iteration is
// always over this slice, never over a map, so output stays byte-stable.
var Systems = []string{"ehr", "lis", "ris", "pharmacy", "pas", "billing"}

type systemConfig struct {
	Prefix string
	Offset int
}

var systemConfigs = map[string]systemConfig{
	"ehr":      {Prefix: "MRN-", Offset: 100000},
	"lis":      {Prefix: "LAB-", Offset: 200000},
	"ris":      {Prefix: "RAD-", Offset: 300000},
	"pharmacy": {Prefix: "RX-", Offset: 400000},
	"pas":      {Prefix: "ADT-", Offset: 500000},
	"billing":  {Prefix: "ACCT-", Offset: 600000},
}

// Record origins. Duplicate records are the answer key for
// duplicate-detection tasks.
const (
	OriginPrimary   = "primary"
	OriginDuplicate = "duplicate"
)

// SystemRecord is one per-system patient registry entry.
type SystemRecord struct {
	SystemName   string            `json:"system_name"`
	LocalID      string            `json:"local_id"`
	PersonID     string            `json:"person_id"`
	Origin       string            `json:"origin"`
	Demographics identity.Snapshot `json:"demographics"`
}

// Data-quality flags recorded on deliberately broken resources.
const (
	FlagOrphaned    = "orphaned"
	FlagAbandoned   = "abandoned"
	FlagFutureDated = "future_dated"
	FlagLegacyCode  = "legacy_code"
)

// ClinicalResource pairs a generated FHIR resource with the generation
// metadata the index builder needs. Only the FHIR resource reaches the seed
// bundles; the metadata stays on the hidden side.
type ClinicalResource struct {
	Resource     *fhir.Resource `json:"resource"`
	SystemName   string         `json:"system_name"`
	PersonID     string         `json:"person_id"`
	Kind         string         `json:"kind"`
	Cohort       string         `json:"cohort,omitempty"`
	QualityFlags []string       `json:"quality_flags,omitempty"`
}

func (c *ClinicalResource) HasFlag(flag string) bool {
	for _, f := range c.QualityFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Dataset is the full generator output: canonical persons, per-system
// registry records and clinical resources, all immutable once produced.
type Dataset struct {
	Seed          int64              `json:"seed"`
	ReferenceDate string             `json:"reference_date"`
	Persons       []identity.Person  `json:"persons"`
	Records       []SystemRecord     `json:"records"`
	Resources     []ClinicalResource `json:"resources"`
	// Cohort name -> sorted member person ids.
	Cohorts map[string][]string `json:"cohorts"`
}

// PatientResource renders a registry record as the FHIR Patient the mock
// service serves.
func PatientResource(record SystemRecord) *fhir.Resource {
	demo := record.Demographics
	name := fhir.HumanName{Family: demo.LastName, Given: []string{demo.FirstName}}
	if demo.MiddleName != "" {
		name.Given = append(name.Given, demo.MiddleName)
	}

	active := true
	patient := &fhir.Resource{
		ResourceType: "Patient",
		ID:           record.LocalID,
		Identifier: []fhir.Identifier{{
			Use: "usual",
			Type: &fhir.CodeableConcept{Coding: []fhir.Coding{{
				System: "http://terminology.hl7.org/CodeSystem/v2-0203",
				Code:   "MR",
			}}},
			System: fmt.Sprintf("http://%s.hospital.example.org/patients", record.SystemName),
			Value:  record.LocalID,
		}},
		Active:    &active,
		Name:      []fhir.HumanName{name},
		Gender:    demo.Gender,
		BirthDate: demo.BirthDate,
	}
	if demo.Phone != "" {
		patient.Telecom = []fhir.ContactPoint{{System: "phone", Value: demo.Phone}}
	}
	if demo.Street != "" {
		patient.Address = []fhir.Address{{
			Line:       []string{demo.Street},
			City:       demo.City,
			State:      demo.State,
			PostalCode: demo.Zip,
		}}
	}
	return patient
}

// SeedBundle assembles one system's bundle: its patients followed by its
// clinical resources, in generation order.
func (d *Dataset) SeedBundle(system string) *fhir.Bundle {
	var resources []*fhir.Resource
	for _, record := range d.Records {
		if record.SystemName == system {
			resources = append(resources, PatientResource(record))
		}
	}
	for i := range d.Resources {
		if d.Resources[i].SystemName == system {
			resources = append(resources, d.Resources[i].Resource)
		}
	}
	return fhir.NewCollection(resources)
}

// WriteSeeds writes the six seed bundles the mock services load verbatim.
func (d *Dataset) WriteSeeds(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, system := range Systems {
		path := filepath.Join(dir, system+"_seed.json")
		if err := fhir.WriteBundle(path, d.SeedBundle(system)); err != nil {
			return fmt.Errorf("write %s seed: %w", system, err)
		}
	}
	return nil
}

// LocalIDsBySystem groups registry record ids per system for one person.
func (d *Dataset) LocalIDsBySystem(personID string) map[string][]string {
	out := make(map[string][]string)
	for _, record := range d.Records {
		if record.PersonID == personID {
			out[record.SystemName] = append(out[record.SystemName], record.LocalID)
		}
	}
	return out
}
