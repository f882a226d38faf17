package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRecord(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const sliceRecord = `{
	"id": "S1",
	"name": "uRLLC Slice",
	"description": "Ultra reliable low latency 5G network slice",
	"version": "2.0",
	"serviceSpecRelationship": [
		{
			"relationshipType": "dependsOn",
			"serviceSpec": {
				"@referredType": "CustomerFacingServiceSpecification",
				"name": "5G Core",
				"id": "C1",
				"version": "1.1",
				"href": "/catalog/C1"
			}
		},
		{
			"relationshipType": "dependsOn",
			"serviceSpec": {
				"@referredType": "ResourceFacingServiceSpecification",
				"name": "RAN Function",
				"id": "R1"
			}
		},
		{
			"relationshipType": "relies",
			"serviceSpec": {
				"@referredType": "CustomerFacingServiceSpecification",
				"name": "Monitoring",
				"id": "M1"
			}
		}
	]
}`

func TestDirStore_LookupByIDAndName(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "slice.json", sliceRecord)

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	byID, err := store.Lookup("S1")
	if err != nil {
		t.Fatalf("Lookup by id: %v", err)
	}
	byName, err := store.Lookup("uRLLC Slice")
	if err != nil {
		t.Fatalf("Lookup by name: %v", err)
	}
	if byID != byName {
		t.Fatalf("id and name lookups resolved to different records")
	}

	if _, err := store.Lookup("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup(nope) = %v, want ErrNotFound", err)
	}
}

func TestDirStore_MalformedRecordsCollected(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "good.json", `{"id": "G1", "name": "Good"}`)
	writeRecord(t, dir, "bad.json", `{not json`)

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	if len(store.Records()) != 1 {
		t.Fatalf("Records = %d, want the good record only", len(store.Records()))
	}
	malformed := store.Malformed()
	if len(malformed) != 1 || malformed[0].File != "bad.json" {
		t.Fatalf("Malformed = %+v, want bad.json reported", malformed)
	}

	var mErr *MalformedRecordError
	if !errors.As(error(malformed[0]), &mErr) {
		t.Fatalf("malformed entry is not a MalformedRecordError")
	}
}

func TestExtractDependencies_CFSSFilter(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "slice.json", sliceRecord)
	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	spec, err := store.Lookup("S1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	deps := ExtractDependencies(spec)
	if len(deps) != 1 {
		t.Fatalf("len(deps) = %d, want only the dependsOn->CFSS relationship", len(deps))
	}
	dep := deps[0]
	if dep.Name != "5G Core" || dep.ID != "C1" || dep.Version != "1.1" || dep.Href != "/catalog/C1" {
		t.Fatalf("dep = %+v, want fields preserved", dep)
	}
}

func TestExtractDependencies_DefaultsForMissingFields(t *testing.T) {
	spec := &ServiceSpec{
		Relationships: []SpecRelationship{
			{
				RelationshipType: "dependsOn",
				ServiceSpec:      SpecRef{ReferredType: cfssReferredType},
			},
		},
	}
	deps := ExtractDependencies(spec)
	if len(deps) != 1 {
		t.Fatalf("len(deps) = %d, want 1", len(deps))
	}
	if deps[0].Name != "Unknown" || deps[0].ID != "unknown" || deps[0].Version != "1.0.0" {
		t.Fatalf("deps[0] = %+v, want defaults filled in", deps[0])
	}
}

func TestSummary_DescriptionWeighted(t *testing.T) {
	spec := &ServiceSpec{
		Name:        "Edge Video Analytics",
		Description: "Real-time video analysis at the edge",
		Characteristics: []Characteristic{
			{
				Name:         "latency",
				Description:  "processing latency",
				Configurable: true,
				Values: []CharacteristicValue{
					{Value: map[string]interface{}{"alias": "low", "value": "10ms"}},
				},
			},
			{Name: "empty"},
		},
	}

	got := Summary(spec)
	if !containsTwice(got, "real-time video analysis at the edge") {
		t.Fatalf("description not double-weighted in summary: %q", got)
	}
	if want := "configurable • processing latency : low (10ms)"; !contains(got, want) {
		t.Fatalf("summary missing characteristic line %q: %q", want, got)
	}
}

func TestSummary_RangeValues(t *testing.T) {
	spec := &ServiceSpec{
		Name: "Slice",
		Characteristics: []Characteristic{
			{
				Name:   "bandwidth",
				Values: []CharacteristicValue{{Value: "x", ValueFrom: 10.0, ValueTo: 100.0}},
			},
		},
	}
	got := Summary(spec)
	if !contains(got, "10 – 100") {
		t.Fatalf("summary missing range rendering: %q", got)
	}
}

func TestSanitizeID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Slice 5G uRLLC", "slice_5g_urllc"},
		{"Qualité – Vidéo", "qualite_-_video"},
		{"", "unknown_service"},
		{"___", "unknown_service"},
		{"Notification/SMS Service", "notificationsms_service"},
	}
	for _, c := range cases {
		if got := SanitizeID(c.in); got != c.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func containsTwice(s, sub string) bool {
	first := strings.Index(s, sub)
	if first < 0 {
		return false
	}
	return strings.Contains(s[first+len(sub):], sub)
}
