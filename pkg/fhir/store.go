package fhir

import (
	"strings"
)

// Store holds one system's seed bundle in memory and answers read-only
// searches over it. It never mutates after Load, so concurrent reads need
// no locking.
type Store struct {
	system string
	byType map[string][]*Resource
	byID   map[string]*Resource
}

func NewStore(system string) *Store {
	return &Store{
		system: system,
		byType: make(map[string][]*Resource),
		byID:   make(map[string]*Resource),
	}
}

func (s *Store) System() string { return s.system }

func (s *Store) Load(bundle *Bundle) {
	for _, r := range bundle.Resources() {
		s.byType[r.ResourceType] = append(s.byType[r.ResourceType], r)
		s.byID[r.ResourceType+"/"+r.ID] = r
	}
}

func (s *Store) Get(resourceType, id string) (*Resource, bool) {
	r, ok := s.byID[resourceType+"/"+id]
	return r, ok
}

func (s *Store) Count(resourceType string) int {
	return len(s.byType[resourceType])
}

func (s *Store) Types() []string {
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	return types
}

// SearchParams is the query surface the mock services expose:
// _count/_offset paging plus code, name, subject/patient and status filters.
type SearchParams struct {
	Code    string
	Name    string
	Subject string
	Status  string
	Count   int
	Offset  int
}

// Search filters resources of one type and returns a page plus the total
// match count before paging.
func (s *Store) Search(resourceType string, params SearchParams) ([]*Resource, int) {
	var matched []*Resource
	for _, r := range s.byType[resourceType] {
		if params.Code != "" && !r.HasCode(params.Code) {
			continue
		}
		if params.Name != "" && !matchesName(r, params.Name) {
			continue
		}
		if params.Subject != "" && r.SubjectID() != params.Subject {
			continue
		}
		if params.Status != "" && r.Status != params.Status {
			continue
		}
		matched = append(matched, r)
	}

	total := len(matched)
	count := params.Count
	if count <= 0 {
		count = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total
	}
	end := offset + count
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

func matchesName(r *Resource, query string) bool {
	q := strings.ToLower(query)
	for _, name := range r.Name {
		if strings.Contains(strings.ToLower(name.Family), q) {
			return true
		}
		for _, given := range name.Given {
			if strings.Contains(strings.ToLower(given), q) {
				return true
			}
		}
	}
	return false
}
