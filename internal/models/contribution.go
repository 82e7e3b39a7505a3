package models

import "time"

// Contribution is one upload session by one contributor to one mesh.
// ProcessedAt is stamped exactly once, when Processed flips true.
type Contribution struct {
	ID            string     `db:"id" json:"id"`
	MeshID        string     `db:"mesh_id" json:"mesh_id"`
	ContributorID string     `db:"contributor_id" json:"contributor_id"`
	ContributedAt time.Time  `db:"contributed_at" json:"contributed_at"`
	Processed     bool       `db:"processed" json:"processed"`
	ProcessedAt   *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	Images []Image `db:"-" json:"images,omitempty"`
}
