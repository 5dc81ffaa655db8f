package identity

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
)

// Rates are the per-field perturbation probabilities. Duplicate generation
// uses a scaled-up copy to simulate registration-time re-entry.
type Rates struct {
	Nickname       float64 `yaml:"nickname"`
	SurnameTypo    float64 `yaml:"surname_typo"`
	CaseFold       float64 `yaml:"case_fold"`
	MiddleDrop     float64 `yaml:"middle_drop"`
	TypoInject     float64 `yaml:"typo_inject"`
	Initial        float64 `yaml:"initial"`
	NameSwap       float64 `yaml:"name_swap"`
	DateFormat     float64 `yaml:"date_format"`
	DateOmit       float64 `yaml:"date_omit"`
	PhoneTranspose float64 `yaml:"phone_transpose"`
	PhoneRedact    float64 `yaml:"phone_redact"`
	PhoneOmit      float64 `yaml:"phone_omit"`
}

func DefaultRates() Rates {
	return Rates{
		Nickname:       0.30,
		SurnameTypo:    0.09,
		CaseFold:       0.40,
		MiddleDrop:     0.30,
		TypoInject:     0.05,
		Initial:        0.05,
		NameSwap:       0.0,
		DateFormat:     0.20,
		DateOmit:       0.10,
		PhoneTranspose: 0.05,
		PhoneRedact:    0.03,
		PhoneOmit:      0.05,
	}
}

// DuplicateRates returns the magnified copy used for intra-system
// duplicates. Scaling keeps the two snapshots recognizably the same person
// while making naive string equality fail.
func (r Rates) DuplicateRates() Rates {
	scale := func(p float64) float64 {
		p *= 1.7
		if p > 0.9 {
			p = 0.9
		}
		return p
	}
	return Rates{
		Nickname:       scale(r.Nickname),
		SurnameTypo:    scale(r.SurnameTypo),
		CaseFold:       r.CaseFold,
		MiddleDrop:     scale(r.MiddleDrop),
		TypoInject:     scale(r.TypoInject),
		Initial:        scale(r.Initial),
		NameSwap:       0.05,
		DateFormat:     scale(r.DateFormat),
		DateOmit:       r.DateOmit,
		PhoneTranspose: scale(r.PhoneTranspose),
		PhoneRedact:    scale(r.PhoneRedact),
		PhoneOmit:      r.PhoneOmit,
	}
}

// Perturber produces noisy demographics snapshots. Every operation only
// touches the displayed snapshot; the person binding is carried by the
// caller and never altered here.
type Perturber struct {
	tables Tables
	rates  Rates
}

func NewPerturber(tables Tables, rates Rates) *Perturber {
	return &Perturber{tables: tables, rates: rates}
}

// Perturb returns a snapshot for one system record. Deterministic for a
// given (person, system, seed) triple.
func (p *Perturber) Perturb(person Person, system string, seed int64) Snapshot {
	rng := rand.New(rand.NewSource(subSeed(seed, person.PersonID, system, 0)))
	return p.apply(person, system, p.rates, rng)
}

// GenerateDuplicate produces a second snapshot for the same person in the
// same system with magnified noise. Callers tag the resulting record so the
// index builder can key duplicate-detection tasks off it.
func (p *Perturber) GenerateDuplicate(person Person, system string, seed int64) Snapshot {
	rng := rand.New(rand.NewSource(subSeed(seed, person.PersonID, system, 1)))
	return p.apply(person, system, p.rates.DuplicateRates(), rng)
}

func subSeed(seed int64, personID, system string, variant uint64) int64 {
	h := fnv.New64a()
	h.Write([]byte(personID))
	h.Write([]byte{'|'})
	h.Write([]byte(system))
	sum := h.Sum64() + variant*0x9e3779b97f4a7c15
	return seed ^ int64(sum)
}

func (p *Perturber) apply(person Person, system string, rates Rates, rng *rand.Rand) Snapshot {
	snap := SnapshotOf(person)

	// Name
	if aliases, ok := p.tables.Nicknames[snap.FirstName]; ok && rng.Float64() < rates.Nickname {
		snap.FirstName = aliases[rng.Intn(len(aliases))]
	} else if rng.Float64() < rates.Initial && len(snap.FirstName) > 0 {
		snap.FirstName = snap.FirstName[:1] + "."
	}
	if typos, ok := p.tables.SurnameTypos[snap.LastName]; ok && rng.Float64() < rates.SurnameTypo {
		snap.LastName = typos[rng.Intn(len(typos))]
	} else if rng.Float64() < rates.TypoInject {
		snap.LastName = injectTypo(snap.LastName, rng)
	}
	if rng.Float64() < rates.CaseFold {
		snap.FirstName = strings.ToUpper(snap.FirstName)
		snap.LastName = strings.ToUpper(snap.LastName)
	}
	if rng.Float64() < rates.MiddleDrop {
		snap.MiddleName = ""
	}
	if rng.Float64() < rates.NameSwap {
		snap.FirstName, snap.LastName = snap.LastName, snap.FirstName
	}

	// Birth date
	if rng.Float64() < rates.DateOmit {
		snap.BirthDate = ""
	} else if rng.Float64() < rates.DateFormat {
		snap.BirthDate = reformatDate(snap.BirthDate, rng)
	}

	// Phone: each system has its own house format before any noise.
	snap.Phone = systemPhoneFormat(snap.Phone, system)
	if rng.Float64() < rates.PhoneOmit {
		snap.Phone = ""
	} else if rng.Float64() < rates.PhoneTranspose {
		snap.Phone = transposeDigits(snap.Phone, rng)
	} else if rng.Float64() < rates.PhoneRedact {
		snap.Phone = redactPhone(snap.Phone)
	}

	return snap
}

// injectTypo applies a single-character transposition or substitution.
func injectTypo(s string, rng *rand.Rand) string {
	if len(s) < 2 {
		return s
	}
	b := []byte(s)
	i := 1 + rng.Intn(len(b)-1)
	if rng.Float64() < 0.5 {
		b[i-1], b[i] = b[i], b[i-1]
	} else {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}

func reformatDate(iso string, rng *rand.Rand) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	switch rng.Intn(3) {
	case 0:
		return t.Format("01/02/2006")
	case 1:
		return t.Format("January 2, 2006")
	default:
		return t.Format("02-Jan-2006")
	}
}

func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func systemPhoneFormat(phone, system string) string {
	digits := phoneDigits(phone)
	if len(digits) != 10 {
		return phone
	}
	switch system {
	case "lis":
		return digits
	case "billing":
		return fmt.Sprintf("%s.%s.%s", digits[:3], digits[3:6], digits[6:])
	case "pharmacy":
		return fmt.Sprintf("%s-%s-%s", digits[:3], digits[3:6], digits[6:])
	default:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	}
}

func transposeDigits(phone string, rng *rand.Rand) string {
	b := []byte(phone)
	var positions []int
	for i, c := range b {
		if c >= '0' && c <= '9' {
			positions = append(positions, i)
		}
	}
	if len(positions) < 2 {
		return phone
	}
	k := rng.Intn(len(positions) - 1)
	i, j := positions[k], positions[k+1]
	b[i], b[j] = b[j], b[i]
	return string(b)
}

func redactPhone(phone string) string {
	digits := phoneDigits(phone)
	if len(digits) < 4 {
		return phone
	}
	return "XXX-XXX-" + digits[len(digits)-4:]
}
