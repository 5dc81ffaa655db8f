package fhir

// Minimal FHIR R4 shapes, just wide enough for the six mock systems. One
// flat Resource struct covers every served type so seed bundles round-trip
// without a type registry.

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
}

type Identifier struct {
	Use    string           `json:"use,omitempty"`
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

type HumanName struct {
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Address struct {
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type RangeBound struct {
	Value float64 `json:"value"`
}

type ReferenceRange struct {
	Low  *RangeBound `json:"low,omitempty"`
	High *RangeBound `json:"high,omitempty"`
}

type Dosage struct {
	Text string `json:"text"`
}

// Resource is the union of the fields used by Patient, Condition,
// Observation, ServiceRequest, MedicationRequest, Encounter and Claim.
type Resource struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Active       *bool        `json:"active,omitempty"`

	// Patient
	Name      []HumanName    `json:"name,omitempty"`
	Gender    string         `json:"gender,omitempty"`
	BirthDate string         `json:"birthDate,omitempty"`
	Telecom   []ContactPoint `json:"telecom,omitempty"`
	Address   []Address      `json:"address,omitempty"`

	// Shared clinical fields
	Status             string            `json:"status,omitempty"`
	Intent             string            `json:"intent,omitempty"`
	ClinicalStatus     *CodeableConcept  `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept  `json:"verificationStatus,omitempty"`
	Category           []CodeableConcept `json:"category,omitempty"`
	Code               *CodeableConcept  `json:"code,omitempty"`
	Subject            *Reference        `json:"subject,omitempty"`
	Patient            *Reference        `json:"patient,omitempty"`
	BasedOn            []Reference       `json:"basedOn,omitempty"`
	Note               []Annotation      `json:"note,omitempty"`

	// Condition
	OnsetDateTime string `json:"onsetDateTime,omitempty"`
	RecordedDate  string `json:"recordedDate,omitempty"`

	// Observation
	EffectiveDateTime string            `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity         `json:"valueQuantity,omitempty"`
	ValueString       string            `json:"valueString,omitempty"`
	ReferenceRange    []ReferenceRange  `json:"referenceRange,omitempty"`
	Interpretation    []CodeableConcept `json:"interpretation,omitempty"`

	// ServiceRequest / MedicationRequest
	AuthoredOn                string           `json:"authoredOn,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	DosageInstruction         []Dosage         `json:"dosageInstruction,omitempty"`

	// Encounter
	Class  *Coding `json:"class,omitempty"`
	Period *Period `json:"period,omitempty"`

	// Claim
	Total   *Money `json:"total,omitempty"`
	Created string `json:"created,omitempty"`
}

// SubjectID returns the local patient id a clinical resource points at,
// stripping the "Patient/" prefix. Claims reference via patient, the rest
// via subject.
func (r *Resource) SubjectID() string {
	ref := ""
	if r.Subject != nil {
		ref = r.Subject.Reference
	} else if r.Patient != nil {
		ref = r.Patient.Reference
	}
	const prefix = "Patient/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

// HasCode reports whether any coding on the resource carries the given code,
// checking code, medicationCodeableConcept and class.
func (r *Resource) HasCode(code string) bool {
	if r.Code != nil {
		for _, c := range r.Code.Coding {
			if c.Code == code {
				return true
			}
		}
	}
	if r.MedicationCodeableConcept != nil {
		for _, c := range r.MedicationCodeableConcept.Coding {
			if c.Code == code {
				return true
			}
		}
	}
	if r.Class != nil && r.Class.Code == code {
		return true
	}
	return false
}

// CodeSystem returns the code-system URI of the primary coding, if any.
func (r *Resource) CodeSystem() string {
	if r.Code != nil && len(r.Code.Coding) > 0 {
		return r.Code.Coding[0].System
	}
	return ""
}
