package msgpack

import (
	"bytes"
	"testing"
)

// wireRecord mirrors the shape tokenized structs take on the wire:
// scalar tokens become strings, sequences become string arrays, and
// optionals become nullable pointers.
type wireRecord struct {
	ID      string    `msgpack:"id"`
	LineIDs []string  `msgpack:"line_ids"`
	Manager *string   `msgpack:"manager"`
	Teams   *[]string `msgpack:"teams"`
	Name    string    `msgpack:"name"`
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/msgpack" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/msgpack")
	}
}

func TestMarshalUnmarshal_TokenShapes(t *testing.T) {
	c := New()

	manager := "qKknODM7Ej"
	teams := []string{"NkK9", "B3Kg2n"}
	original := wireRecord{
		ID:      "BgRNw2V5aQ",
		LineIDs: []string{"x9B7m", "p2QzL"},
		Manager: &manager,
		Teams:   &teams,
		Name:    "Dan Smith",
	}

	data, err := c.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	// Token text survives the binary encoding verbatim.
	if !bytes.Contains(data, []byte("BgRNw2V5aQ")) {
		t.Error("output should carry the token bytes unchanged")
	}

	var restored wireRecord
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if restored.ID != original.ID || restored.Name != original.Name {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
	if len(restored.LineIDs) != 2 || restored.LineIDs[0] != "x9B7m" {
		t.Errorf("LineIDs = %v, want %v", restored.LineIDs, original.LineIDs)
	}
	if restored.Manager == nil || *restored.Manager != manager {
		t.Errorf("Manager = %v, want %q", restored.Manager, manager)
	}
	if restored.Teams == nil || len(*restored.Teams) != 2 {
		t.Errorf("Teams = %v, want %v", restored.Teams, teams)
	}
}

func TestMarshalUnmarshal_AbsentOptionals(t *testing.T) {
	c := New()

	data, err := c.Marshal(wireRecord{ID: "NkK9"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var restored wireRecord
	if err := c.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if restored.Manager != nil || restored.Teams != nil {
		t.Error("absent optionals should round-trip to nil")
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	c := New()

	var v wireRecord
	if err := c.Unmarshal([]byte{0xc1}, &v); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}
