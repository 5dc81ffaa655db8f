package identity

import (
	"strings"
	"time"
)

// JaroWinkler computes string similarity in [0,1]. Used to bound how far a
// perturbed snapshot may drift from its canonical person.
func JaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for ; !s2Matches[k]; k++ {
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	transpositions /= 2

	jaro := (float64(matches)/float64(len(s1)) + float64(matches)/float64(len(s2)) + float64(matches-transpositions)/float64(matches)) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

// Similarity scores a snapshot against its canonical person, averaging
// name similarity with birth-date agreement. Omitted fields are skipped so
// deliberate omission does not count as drift.
func Similarity(snap Snapshot, person Person) float64 {
	var total float64
	var n int

	total += JaroWinkler(strings.ToLower(snap.FirstName), strings.ToLower(person.FirstName))
	n++
	total += JaroWinkler(strings.ToLower(snap.LastName), strings.ToLower(person.LastName))
	n++

	if snap.BirthDate != "" {
		if normalizeDate(snap.BirthDate) == person.BirthDate {
			total += 1.0
		}
		n++
	}
	if snap.Phone != "" && person.Phone != "" {
		total += JaroWinkler(phoneDigits(snap.Phone), phoneDigits(person.Phone))
		n++
	}

	if n == 0 {
		return 0
	}
	return total / float64(n)
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "January 2, 2006", "02-Jan-2006"}

func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
