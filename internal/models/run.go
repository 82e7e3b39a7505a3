package models

import "time"

// RunStatus tracks one reconstruction attempt. Error and Archived are
// terminal.
type RunStatus string

const (
	RunStatusProcessing RunStatus = "Processing"
	RunStatusError      RunStatus = "Error"
	RunStatusArchived   RunStatus = "Archived"
)

// Run is one reconstruction attempt for a mesh. Directory is derived from
// the start timestamp and run ID after the first insert and never
// recomputed. Ark is bound at most once and survives run deletion.
type Run struct {
	ID        string     `db:"id" json:"id"`
	MeshID    string     `db:"mesh_id" json:"mesh_id"`
	Ark       *string    `db:"ark" json:"ark,omitempty"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Directory string     `db:"directory" json:"directory"`
	Status    RunStatus  `db:"status" json:"status"`

	// Viewer-orientation override, independent of the mesh's own
	// rotation fields.
	RotaX *int `db:"rota_x" json:"rota_x,omitempty"`
	RotaY *int `db:"rota_y" json:"rota_y,omitempty"`
	RotaZ *int `db:"rota_z" json:"rota_z,omitempty"`

	Contributors []Contributor `db:"-" json:"contributors,omitempty"`
	Images       []Image       `db:"-" json:"images,omitempty"`
}
