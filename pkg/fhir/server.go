package fhir

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hdh-bench/platform/pkg/common/logger"
)

// Server exposes one system's store over a FHIR-like read-only REST surface.
// It has no access to ground truth; it serves the seed bundle verbatim.
type Server struct {
	store *Store
}

func NewServer(store *Store) *Server {
	return &Server{store: store}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodGet)
	router.HandleFunc("/{resourceType}", s.handleSearch).Methods(http.MethodGet)
	router.HandleFunc("/{resourceType}/{id}", s.handleRead).Methods(http.MethodGet)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "system": s.store.System()})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	types := s.store.Types()
	sort.Strings(types)
	rest := make([]map[string]interface{}, 0, len(types))
	for _, t := range types {
		rest = append(rest, map[string]interface{}{
			"type":  t,
			"total": s.store.Count(t),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"fhirVersion":  "4.0.1",
		"rest": []map[string]interface{}{
			{"mode": "server", "resource": rest},
		},
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resource, ok := s.store.Get(vars["resourceType"], vars["id"])
	if !ok {
		writeOperationOutcome(w, http.StatusNotFound, "not-found", vars["resourceType"]+"/"+vars["id"]+" not found")
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resourceType := vars["resourceType"]
	if s.store.Count(resourceType) == 0 {
		if _, known := knownTypes[resourceType]; !known {
			writeOperationOutcome(w, http.StatusNotFound, "not-supported", "unknown resource type "+resourceType)
			return
		}
	}

	query := r.URL.Query()
	params := SearchParams{
		Code:   query.Get("code"),
		Name:   query.Get("name"),
		Status: query.Get("status"),
		Count:  atoiDefault(query.Get("_count"), 50),
		Offset: atoiDefault(query.Get("_offset"), 0),
	}
	if subject := query.Get("subject"); subject != "" {
		params.Subject = subject
	} else if patient := query.Get("patient"); patient != "" {
		params.Subject = patient
	}

	page, total := s.store.Search(resourceType, params)
	bundle := NewSearchSet(page)
	logger.WithFields(map[string]interface{}{
		"system": s.store.System(),
		"type":   resourceType,
		"total":  total,
		"page":   len(page),
	}).Debug("search")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resourceType": bundle.ResourceType,
		"type":         bundle.Type,
		"total":        total,
		"entry":        bundle.Entry,
	})
}

var knownTypes = map[string]struct{}{
	"Patient":           {},
	"Condition":         {},
	"Observation":       {},
	"ServiceRequest":    {},
	"MedicationRequest": {},
	"Encounter":         {},
	"Claim":             {},
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/fhir+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeOperationOutcome(w http.ResponseWriter, status int, code, diagnostics string) {
	writeJSON(w, status, map[string]interface{}{
		"resourceType": "OperationOutcome",
		"issue": []map[string]string{
			{"severity": "error", "code": code, "diagnostics": diagnostics},
		},
	})
}
