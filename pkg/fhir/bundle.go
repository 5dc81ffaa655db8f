package fhir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	Resource *Resource `json:"resource"`
}

// NewCollection wraps resources in a collection bundle, preserving order.
func NewCollection(resources []*Resource) *Bundle {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, BundleEntry{Resource: r})
	}
	return &Bundle{ResourceType: "Bundle", Type: "collection", Entry: entries}
}

// NewSearchSet wraps a search result page.
func NewSearchSet(resources []*Resource) *Bundle {
	b := NewCollection(resources)
	b.Type = "searchset"
	return b
}

func (b *Bundle) Resources() []*Resource {
	out := make([]*Resource, 0, len(b.Entry))
	for _, e := range b.Entry {
		if e.Resource != nil {
			out = append(out, e.Resource)
		}
	}
	return out
}

func LoadBundle(path string) (*Bundle, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	var bundle Bundle
	if err := json.Unmarshal(content, &bundle); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	return &bundle, nil
}

// WriteBundle writes an indented bundle. Output is byte-stable for a fixed
// entry order, which the determinism check depends on.
func WriteBundle(path string, bundle *Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
