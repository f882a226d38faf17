// Package catalog reads TMF633 service specifications from a directory of
// JSON records and exposes id-or-name lookup, customer-facing dependency
// extraction, and the summary text used to embed each record for semantic
// retrieval.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bendoumahosni/intent-interpretation/internal/logging"
	"github.com/bendoumahosni/intent-interpretation/internal/types"
)

// ErrNotFound signals that no record matches the requested id or name.
var ErrNotFound = errors.New("catalog: service not found")

// MalformedRecordError reports a catalog file that exists but cannot be
// parsed. Distinguished from not-found and from I/O failures so callers can
// surface bad records instead of silently skipping them.
type MalformedRecordError struct {
	File string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("catalog: malformed record %s: %v", e.File, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// SpecRef is the target of a specification relationship.
type SpecRef struct {
	ReferredType string `json:"@referredType"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	Version      string `json:"version"`
	Href         string `json:"href"`
}

// SpecRelationship links a specification to another one.
type SpecRelationship struct {
	RelationshipType string  `json:"relationshipType"`
	ServiceSpec      SpecRef `json:"serviceSpec"`
}

// CharacteristicValue is one allowed value of a characteristic. Value may be
// a plain literal or an {alias, value} object; ValueFrom/ValueTo describe a
// range.
type CharacteristicValue struct {
	Value     interface{} `json:"value"`
	ValueFrom interface{} `json:"valueFrom"`
	ValueTo   interface{} `json:"valueTo"`
}

// Characteristic is one configurable property of a specification.
type Characteristic struct {
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	ValueType    string                `json:"valueType"`
	Configurable bool                  `json:"configurable"`
	Values       []CharacteristicValue `json:"serviceSpecCharacteristicValue"`
}

// ServiceSpec is a TMF633 customer-facing service specification record.
type ServiceSpec struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Version         string             `json:"version"`
	Relationships   []SpecRelationship `json:"serviceSpecRelationship"`
	Characteristics []Characteristic   `json:"serviceSpecCharacteristic"`
}

// cfssReferredType is the only relationship target kept as a dependency.
const cfssReferredType = "CustomerFacingServiceSpecification"

// ExtractDependencies keeps dependsOn relationships that point at a
// customer-facing specification; resource-facing and other relationship
// kinds are discarded.
func ExtractDependencies(spec *ServiceSpec) []types.ServiceDependency {
	if spec == nil {
		return nil
	}
	var deps []types.ServiceDependency
	for _, rel := range spec.Relationships {
		if rel.RelationshipType != "dependsOn" {
			continue
		}
		if rel.ServiceSpec.ReferredType != cfssReferredType {
			continue
		}
		dep := types.ServiceDependency{
			Name:    rel.ServiceSpec.Name,
			ID:      rel.ServiceSpec.ID,
			Version: rel.ServiceSpec.Version,
			Href:    rel.ServiceSpec.Href,
		}
		if dep.Name == "" {
			dep.Name = "Unknown"
		}
		if dep.ID == "" {
			dep.ID = "unknown"
		}
		if dep.Version == "" {
			dep.Version = "1.0.0"
		}
		deps = append(deps, dep)
	}
	return deps
}

// Store resolves full catalog records by id or name.
type Store interface {
	// Lookup returns the record whose id or name matches. Returns
	// ErrNotFound when no record matches.
	Lookup(idOrName string) (*ServiceSpec, error)
}

// DirStore is a Store backed by a directory of *.json records, loaded once
// at construction. Reload replaces the whole record set, so the watcher can
// refresh it in place.
type DirStore struct {
	dir string

	mu        sync.RWMutex
	records   []*ServiceSpec
	byKey     map[string]*ServiceSpec
	malformed []*MalformedRecordError
}

// NewDirStore loads every JSON record under dir. Malformed files are
// collected rather than aborting the load; I/O failures on the directory
// itself are fatal.
func NewDirStore(dir string) (*DirStore, error) {
	s := &DirStore{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the catalog directory.
func (s *DirStore) Reload() error {
	timer := logging.StartTimer(logging.CategoryCatalog, "DirStore.Reload")
	defer timer.Stop()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("catalog: read directory %s: %w", s.dir, err)
	}

	var (
		records   []*ServiceSpec
		byKey     = make(map[string]*ServiceSpec)
		malformed []*MalformedRecordError
	)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", path, err)
		}

		var spec ServiceSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			malformed = append(malformed, &MalformedRecordError{File: entry.Name(), Err: err})
			logging.Get(logging.CategoryCatalog).Warn("malformed record %s: %v", entry.Name(), err)
			continue
		}

		records = append(records, &spec)
		if spec.ID != "" {
			byKey[spec.ID] = &spec
		}
		if spec.Name != "" {
			byKey[spec.Name] = &spec
		}
	}

	s.mu.Lock()
	s.records = records
	s.byKey = byKey
	s.malformed = malformed
	s.mu.Unlock()

	logging.Catalog("loaded %d records from %s (%d malformed)", len(records), s.dir, len(malformed))
	return nil
}

// Lookup implements Store.
func (s *DirStore) Lookup(idOrName string) (*ServiceSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if spec, ok := s.byKey[idOrName]; ok {
		return spec, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, idOrName)
}

// Records returns every loaded record.
func (s *DirStore) Records() []*ServiceSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ServiceSpec, len(s.records))
	copy(out, s.records)
	return out
}

// Malformed returns the parse failures collected by the last load.
func (s *DirStore) Malformed() []*MalformedRecordError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*MalformedRecordError, len(s.malformed))
	copy(out, s.malformed)
	return out
}
