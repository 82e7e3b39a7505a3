package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ShoulderSeparator is the character every shoulder must begin with.
const ShoulderSeparator = "/"

// ARK is a permanent archival identifier bound to a successful run.
// Records are write-once: an ARK is never deleted and its identifying
// fields never change after minting.
type ARK struct {
	Ark          string      `db:"ark" json:"ark"`
	NAAN         string      `db:"naan" json:"naan"`
	Shoulder     string      `db:"shoulder" json:"shoulder"`
	AssignedName string      `db:"assigned_name" json:"assigned_name"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	URL          string      `db:"url" json:"url"`
	Metadata     ARKMetadata `db:"metadata" json:"metadata"`
	Commitment   string      `db:"commitment" json:"commitment"`
}

// String renders the canonical citable form.
func (a *ARK) String() string {
	return "ark:/" + a.Ark
}

// Validate enforces the ARK structural invariants. Called on every
// persistence of an ARK record, not only creation.
func (a *ARK) Validate() error {
	if a.NAAN == "" || a.Shoulder == "" || a.AssignedName == "" {
		return errors.New("naan, shoulder and assigned name are required")
	}
	if !strings.HasPrefix(a.Shoulder, ShoulderSeparator) {
		return fmt.Errorf("shoulder %q must start with %q", a.Shoulder, ShoulderSeparator)
	}
	expected := a.NAAN + a.Shoulder + a.AssignedName
	if a.Ark != expected {
		return fmt.Errorf("ark mismatch: expected %q, got %q", expected, a.Ark)
	}
	if a.URL == "" {
		return errors.New("bound url is required")
	}
	if len(a.Metadata) == 0 {
		return errors.New("bound metadata is required")
	}
	return nil
}

// ARKMetadata is the structured description bound to an ARK, persisted
// as JSONB.
type ARKMetadata map[string]interface{}

// Value marshals metadata to JSON for persistence.
func (m ARKMetadata) Value() (driver.Value, error) {
	if m == nil {
		m = ARKMetadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal ark metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata map.
func (m *ARKMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ARKMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ARKMetadata", value)
	}
	if len(data) == 0 {
		*m = ARKMetadata{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal ark metadata: %w", err)
	}
	return nil
}
