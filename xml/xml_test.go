package xml

import (
	"strings"
	"testing"
)

// wireRecord mirrors the shape tokenized structs take on the wire:
// scalar tokens become strings, sequences repeat their element, and
// optionals are omitted when nil (XML has no null literal).
type wireRecord struct {
	ID      string   `xml:"id"`
	LineIDs []string `xml:"line_ids"`
	Manager *string  `xml:"manager"`
	Name    string   `xml:"name"`
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/xml" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/xml")
	}
}

func TestMarshalUnmarshal_TokenShapes(t *testing.T) {
	c := New()

	manager := "qKknODM7Ej"
	original := wireRecord{
		ID:      "BgRNw2V5aQ",
		LineIDs: []string{"x9B7m", "p2QzL"},
		Manager: &manager,
		Name:    "Dan Smith",
	}

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	if !strings.Contains(string(data), "<id>BgRNw2V5aQ</id>") {
		t.Errorf("Marshal() = %s, want id token element", data)
	}
	// Sequences render as one element per token.
	if strings.Count(string(data), "<line_ids>") != 2 {
		t.Errorf("Marshal() = %s, want two line_ids elements", data)
	}

	var restored wireRecord
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if restored.ID != original.ID || restored.Name != original.Name {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
	if len(restored.LineIDs) != 2 || restored.LineIDs[1] != "p2QzL" {
		t.Errorf("LineIDs = %v, want %v", restored.LineIDs, original.LineIDs)
	}
	if restored.Manager == nil || *restored.Manager != manager {
		t.Errorf("Manager = %v, want %q", restored.Manager, manager)
	}
}

func TestMarshal_AbsentOptionalOmitted(t *testing.T) {
	c := New()

	data, err := c.Marshal(wireRecord{ID: "NkK9"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if strings.Contains(string(data), "<manager>") {
		t.Errorf("Marshal() = %s, nil optional should be omitted", data)
	}

	var restored wireRecord
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if restored.Manager != nil {
		t.Error("absent optional should deserialize to nil")
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	c := New()

	var v wireRecord
	if err := c.Unmarshal([]byte("<wireRecord><id>unclosed"), &v); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}
