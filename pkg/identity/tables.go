package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tables holds the static realism lookup data: name pools, nickname
// aliases and common surname misspellings. Versioned configuration, not
// logic; ship a YAML file to change realism without touching code.
type Tables struct {
	MaleNames    []string            `yaml:"male_names" json:"male_names"`
	FemaleNames  []string            `yaml:"female_names" json:"female_names"`
	Surnames     []string            `yaml:"surnames" json:"surnames"`
	Nicknames    map[string][]string `yaml:"nicknames" json:"nicknames"`
	SurnameTypos map[string][]string `yaml:"surname_typos" json:"surname_typos"`
	Streets      []string            `yaml:"streets" json:"streets"`
	StreetTypes  []string            `yaml:"street_types" json:"street_types"`
	Cities       []string            `yaml:"cities" json:"cities"`
	Zips         []string            `yaml:"zips" json:"zips"`
}

func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultTables(), err
	}
	var tables Tables
	if err := yaml.Unmarshal(content, &tables); err != nil {
		return Tables{}, err
	}
	if len(tables.Surnames) == 0 || len(tables.MaleNames) == 0 || len(tables.FemaleNames) == 0 {
		return Tables{}, fmt.Errorf("perturbation tables missing name pools")
	}
	if len(tables.Cities) != len(tables.Zips) {
		return Tables{}, fmt.Errorf("perturbation tables: cities and zips must align")
	}
	return tables, nil
}

func DefaultTables() Tables {
	return Tables{
		MaleNames: []string{
			"Michael", "William", "Robert", "James", "John",
			"David", "Richard", "Joseph", "Thomas", "Charles",
		},
		FemaleNames: []string{
			"Jennifer", "Elizabeth", "Margaret", "Patricia", "Barbara",
			"Mary", "Linda", "Susan", "Jessica", "Sarah",
		},
		Surnames: []string{
			"Smith", "Johnson", "Williams", "Brown", "Jones",
			"Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		},
		Nicknames: map[string][]string{
			"Michael":   {"Mike", "M.", "Mich"},
			"William":   {"Will", "Bill", "W."},
			"Robert":    {"Rob", "Bob", "R."},
			"James":     {"Jim", "Jamie", "J."},
			"John":      {"Jon", "Johnny", "J."},
			"Jennifer":  {"Jen", "Jenny", "J."},
			"Elizabeth": {"Liz", "Beth", "E."},
			"Margaret":  {"Marge", "Peggy", "M."},
			"Patricia":  {"Pat", "Patty", "P."},
			"Barbara":   {"Barb", "Barbie", "B."},
		},
		SurnameTypos: map[string][]string{
			"Smith":     {"Smyth", "Smithe", "Smth", "Simth"},
			"Johnson":   {"Johnsen", "Jonson", "Jhonson", "Johnsson"},
			"Williams":  {"Wiliams", "Willams", "Willaims", "Wlliams"},
			"Brown":     {"Browne", "Brwon", "Bown", "Bronw"},
			"Jones":     {"Jons", "Joness", "Jhones", "Jonse"},
			"Garcia":    {"Gracia", "Garsia", "Garciaa", "Garca"},
			"Miller":    {"Miler", "Millr", "Muller", "Millar"},
			"Davis":     {"Davies", "Daviss", "Dvis", "Davs"},
			"Rodriguez": {"Rodrigez", "Rodriquez", "Rodrigues", "Rodrguez"},
			"Martinez":  {"Martines", "Martinz", "Martnez", "Martimez"},
		},
		Streets:     []string{"Oak", "Maple", "Main", "First", "Second", "Park", "Cedar", "Elm", "Pine", "Lake"},
		StreetTypes: []string{"St", "Ave", "Rd", "Dr", "Ln", "Blvd"},
		Cities: []string{
			"Boston", "Cambridge", "Newton", "Brookline", "Somerville",
			"Springfield", "Worcester", "Lowell", "Quincy", "Lynn",
		},
		Zips: []string{
			"02101", "02139", "02458", "02445", "02143",
			"01103", "01602", "01852", "02169", "01902",
		},
	}
}
