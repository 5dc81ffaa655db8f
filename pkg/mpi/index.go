package mpi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hdh-bench/platform/pkg/identity"
	"github.com/hdh-bench/platform/pkg/population"
)

// Entry is one person's row in the master patient index: the canonical
// demographics plus every local id they hold, per system, primary first.
type Entry struct {
	PersonID     string              `json:"person_id"`
	Demographics identity.Person     `json:"demographics"`
	SystemIDs    map[string][]string `json:"system_ids"`
}

// DuplicateGroup names the local ids within one system that all belong to
// the same person. Groups only exist where the generator actually emitted
// an extra record, so every group has at least two members.
type DuplicateGroup struct {
	SystemName string   `json:"system_name"`
	PersonID   string   `json:"person_id"`
	LocalIDs   []string `json:"local_ids"`
}

// QualityRecord tags one deliberately broken resource.
type QualityRecord struct {
	SystemName   string `json:"system_name"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	PersonID     string `json:"person_id"`
	Flag         string `json:"flag"`
}

// Index is the complete hidden answer key for one generated dataset.
type Index struct {
	Seed            int64               `json:"seed"`
	ReferenceDate   string              `json:"reference_date"`
	Entries         []Entry             `json:"entries"`
	DuplicateGroups []DuplicateGroup    `json:"duplicate_groups"`
	Cohorts         map[string][]string `json:"cohorts"`
	Quality         []QualityRecord     `json:"quality"`

	// Derived lookup tables, rebuilt after load.
	byPerson   map[string]*Entry
	bySystemID map[string]string // "system/localID" -> person id
}

// Build derives the index from a generated dataset. It is a pure function
// of its input: two builds over the same dataset produce identical output.
func Build(d *population.Dataset) *Index {
	idx := &Index{
		Seed:          d.Seed,
		ReferenceDate: d.ReferenceDate,
		Cohorts:       d.Cohorts,
	}

	entryFor := make(map[string]*Entry, len(d.Persons))
	for i := range d.Persons {
		person := d.Persons[i]
		idx.Entries = append(idx.Entries, Entry{
			PersonID:     person.PersonID,
			Demographics: person,
			SystemIDs:    make(map[string][]string, len(population.Systems)),
		})
		entryFor[person.PersonID] = &idx.Entries[len(idx.Entries)-1]
	}

	// Records arrive in generation order, primary before duplicate, so
	// appending preserves the primary-first invariant.
	for _, record := range d.Records {
		entry := entryFor[record.PersonID]
		entry.SystemIDs[record.SystemName] = append(entry.SystemIDs[record.SystemName], record.LocalID)
	}

	for i := range idx.Entries {
		entry := &idx.Entries[i]
		for _, system := range population.Systems {
			ids := entry.SystemIDs[system]
			if len(ids) > 1 {
				idx.DuplicateGroups = append(idx.DuplicateGroups, DuplicateGroup{
					SystemName: system,
					PersonID:   entry.PersonID,
					LocalIDs:   ids,
				})
			}
		}
	}

	for i := range d.Resources {
		cr := &d.Resources[i]
		for _, flag := range cr.QualityFlags {
			idx.Quality = append(idx.Quality, QualityRecord{
				SystemName:   cr.SystemName,
				ResourceType: cr.Resource.ResourceType,
				ResourceID:   cr.Resource.ID,
				PersonID:     cr.PersonID,
				Flag:         flag,
			})
		}
	}

	idx.buildLookups()
	return idx
}

func (idx *Index) buildLookups() {
	idx.byPerson = make(map[string]*Entry, len(idx.Entries))
	idx.bySystemID = make(map[string]string)
	for i := range idx.Entries {
		entry := &idx.Entries[i]
		idx.byPerson[entry.PersonID] = entry
		for system, ids := range entry.SystemIDs {
			for _, id := range ids {
				idx.bySystemID[system+"/"+id] = entry.PersonID
			}
		}
	}
}

// PersonBySystemID resolves a local id back to its person; the empty string
// means the id does not exist in that system.
func (idx *Index) PersonBySystemID(system, localID string) string {
	return idx.bySystemID[system+"/"+localID]
}

// PrimaryID returns the person's primary local id in a system.
func (idx *Index) PrimaryID(personID, system string) string {
	entry := idx.byPerson[personID]
	if entry == nil || len(entry.SystemIDs[system]) == 0 {
		return ""
	}
	return entry.SystemIDs[system][0]
}

// AllIDs returns every local id a person holds in a system, primary first.
func (idx *Index) AllIDs(personID, system string) []string {
	entry := idx.byPerson[personID]
	if entry == nil {
		return nil
	}
	return entry.SystemIDs[system]
}

// CohortPrimaryIDs maps a cohort's membership into a system's primary local
// ids, in the cohort's sorted person order.
func (idx *Index) CohortPrimaryIDs(cohort, system string) []string {
	members := idx.Cohorts[cohort]
	ids := make([]string, 0, len(members))
	for _, personID := range members {
		if id := idx.PrimaryID(personID, system); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// QualityIDs returns the resource ids carrying a given flag.
func (idx *Index) QualityIDs(flag string) []string {
	var ids []string
	for _, q := range idx.Quality {
		if q.Flag == flag {
			ids = append(ids, q.ResourceID)
		}
	}
	return ids
}

// Write persists the index as indented JSON, byte-stable across runs.
func (idx *Index) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(content, '\n'), 0o644)
}

// Read loads a previously written index and rebuilds its lookup tables.
func Read(path string) (*Index, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(content, &idx); err != nil {
		return nil, fmt.Errorf("parse ground truth: %w", err)
	}
	idx.buildLookups()
	return &idx, nil
}
