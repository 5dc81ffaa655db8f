package identity

// Person is the canonical ground-truth identity. Generated once, never
// mutated, and never exposed to the agent under test.
type Person struct {
	PersonID   string `json:"person_id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Gender     string `json:"gender"`
	BirthDate  string `json:"birth_date"` // ISO yyyy-mm-dd
	SSNLast4   string `json:"ssn_last4"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
}

// Snapshot is the perturbed demographics copy stored on a system record.
// Any field may diverge from the canonical person; the person binding never
// does.
type Snapshot struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Gender     string `json:"gender"`
	BirthDate  string `json:"birth_date,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Zip        string `json:"zip,omitempty"`
}

// SnapshotOf copies the canonical fields without perturbation.
func SnapshotOf(p Person) Snapshot {
	return Snapshot{
		FirstName:  p.FirstName,
		MiddleName: p.MiddleName,
		LastName:   p.LastName,
		Gender:     p.Gender,
		BirthDate:  p.BirthDate,
		Phone:      p.Phone,
		Street:     p.Street,
		City:       p.City,
		State:      p.State,
		Zip:        p.Zip,
	}
}
