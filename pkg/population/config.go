package population

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hdh-bench/platform/pkg/identity"
	"gopkg.in/yaml.v3"
)

// CohortSpec declares a disease cohort with a target membership range. The
// generator admits members probabilistically but never past High, and tops
// up to Low, so range-based scoring always has a true answer inside
// [Low, High].
type CohortSpec struct {
	Name        string  `yaml:"name"`
	Low         int     `yaml:"low"`
	High        int     `yaml:"high"`
	Probability float64 `yaml:"probability"`
	// Admission probability is boosted for members of another cohort,
	// e.g. metformin given diabetic.
	BoostCohort      string  `yaml:"boost_cohort,omitempty"`
	BoostProbability float64 `yaml:"boost_probability,omitempty"`
}

type Config struct {
	Patients      int    `yaml:"patients"`
	Seed          int64  `yaml:"seed"`
	ReferenceDate string `yaml:"reference_date"` // dataset "now", ISO date

	DuplicateRate      float64 `yaml:"duplicate_rate"`
	LegacyCodeFraction float64 `yaml:"legacy_code_fraction"`
	OrphanRate         float64 `yaml:"orphan_rate"`
	AbandonedRate      float64 `yaml:"abandoned_rate"`
	FutureDateRate     float64 `yaml:"future_date_rate"`
	StalenessDays      int     `yaml:"staleness_days"`

	Cohorts []CohortSpec `yaml:"cohorts"`

	PerturbRates identity.Rates `yaml:"perturb_rates"`
	TablesPath   string         `yaml:"tables_path"`
}

func DefaultConfig() Config {
	return Config{
		Patients:           1000,
		Seed:               42,
		ReferenceDate:      "2026-02-01",
		DuplicateRate:      0.05,
		LegacyCodeFraction: 0.10,
		OrphanRate:         0.03,
		AbandonedRate:      0.02,
		FutureDateRate:     0.01,
		StalenessDays:      90,
		Cohorts: []CohortSpec{
			{Name: "diabetic", Low: 100, High: 160, Probability: 0.12},
			{Name: "hypertensive", Low: 120, High: 190, Probability: 0.15},
			{Name: "on_metformin", Low: 70, High: 130, Probability: 0.02, BoostCohort: "diabetic", BoostProbability: 0.70},
			{Name: "hba1c_monitored", Low: 80, High: 150, Probability: 0.05, BoostCohort: "diabetic", BoostProbability: 0.60},
		},
		PerturbRates: identity.DefaultRates(),
	}
}

func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigError is fatal at startup: generation aborts before any output.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "generation config: " + e.Reason
}

func (c Config) Validate() error {
	if c.Patients <= 0 {
		return &ConfigError{Reason: "patients must be positive"}
	}
	for _, rate := range []struct {
		name  string
		value float64
	}{
		{"duplicate_rate", c.DuplicateRate},
		{"legacy_code_fraction", c.LegacyCodeFraction},
		{"orphan_rate", c.OrphanRate},
		{"abandoned_rate", c.AbandonedRate},
		{"future_date_rate", c.FutureDateRate},
	} {
		if rate.value < 0 || rate.value > 1 {
			return &ConfigError{Reason: fmt.Sprintf("%s must be within [0,1], got %v", rate.name, rate.value)}
		}
	}
	seen := make(map[string]bool)
	for _, cohort := range c.Cohorts {
		if cohort.Name == "" {
			return &ConfigError{Reason: "cohort with empty name"}
		}
		if seen[cohort.Name] {
			return &ConfigError{Reason: "duplicate cohort " + cohort.Name}
		}
		seen[cohort.Name] = true
		if cohort.Low < 0 || cohort.High < cohort.Low {
			return &ConfigError{Reason: fmt.Sprintf("cohort %s: invalid range [%d,%d]", cohort.Name, cohort.Low, cohort.High)}
		}
		if cohort.Low > c.Patients {
			return &ConfigError{Reason: fmt.Sprintf("cohort %s: low bound %d exceeds population %d", cohort.Name, cohort.Low, c.Patients)}
		}
		if cohort.Probability < 0 || cohort.Probability > 1 || cohort.BoostProbability < 0 || cohort.BoostProbability > 1 {
			return &ConfigError{Reason: "cohort " + cohort.Name + ": probability outside [0,1]"}
		}
	}
	return nil
}
