package mapping

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"cian-scraper/models"
)

// Entry declares one (namespace, raw label) → canonical key triple.
type Entry struct {
	Namespace models.Namespace `yaml:"namespace"`
	Label     string           `yaml:"label"`
	Key       string           `yaml:"key"`
}

// Table is the immutable, validated label→key lookup. It is built once at
// startup and passed explicitly to the normalizer.
type Table struct {
	byNamespace map[models.Namespace]map[string]string
	columns     []string
}

// New builds a table from entries and validates it: declaring two distinct
// canonical keys for the same (namespace, label) pair is a configuration
// error and fails fast.
func New(entries []Entry) (*Table, error) {
	t := &Table{
		byNamespace: make(map[models.Namespace]map[string]string, len(models.NamespaceOrder)),
	}
	for _, ns := range models.NamespaceOrder {
		t.byNamespace[ns] = make(map[string]string)
	}

	keys := make(map[string]struct{})
	for _, e := range entries {
		labels, ok := t.byNamespace[e.Namespace]
		if !ok {
			return nil, fmt.Errorf("mapping: unknown namespace %q for label %q", e.Namespace, e.Label)
		}
		if e.Label == "" || e.Key == "" {
			return nil, fmt.Errorf("mapping: empty label or key in namespace %s", e.Namespace)
		}
		if existing, dup := labels[e.Label]; dup && existing != e.Key {
			return nil, &models.MappingTableConflictError{
				Namespace:   e.Namespace,
				Label:       e.Label,
				ExistingKey: existing,
				NewKey:      e.Key,
			}
		}
		labels[e.Label] = e.Key
		keys[e.Key] = struct{}{}
	}

	mapped := make([]string, 0, len(keys))
	for k := range keys {
		mapped = append(mapped, k)
	}
	sort.Strings(mapped)

	t.columns = append(append([]string{}, CoreColumns...), mapped...)
	return t, nil
}

// Default returns the built-in Cian table. The built-in entries are
// consistent by construction, so a validation failure here is a programmer
// error.
func Default() *Table {
	t, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadYAML reads a declarative table of (namespace, label, key) triples.
// The file replaces the built-in table entirely.
func LoadYAML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %q: %w", path, err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("mapping: parse %q: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("mapping: %q declares no entries", path)
	}
	return New(entries)
}

// Load returns the table from path when set, the built-in table otherwise.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadYAML(path)
}

// Resolve looks up the canonical key for a raw label within a namespace.
// It is total: an unknown label returns ok=false, never an error.
func (t *Table) Resolve(ns models.Namespace, label string) (string, bool) {
	labels, ok := t.byNamespace[ns]
	if !ok {
		return "", false
	}
	key, ok := labels[label]
	return key, ok
}

// Columns is the stable canonical column order shared by every store layout:
// core columns first, then all mapped keys sorted alphabetically.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// IsCanonical reports whether key belongs to the table's column space.
func (t *Table) IsCanonical(key string) bool {
	for _, c := range t.columns {
		if c == key {
			return true
		}
	}
	return false
}
