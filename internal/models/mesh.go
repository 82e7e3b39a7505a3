package models

import (
	"strings"
	"time"
)

// MeshStatus tracks where a mesh sits in its reconstruction lifecycle.
type MeshStatus string

const (
	MeshStatusPending    MeshStatus = "Pending"
	MeshStatusProcessing MeshStatus = "Processing"
	MeshStatusLive       MeshStatus = "Live"
	MeshStatusError      MeshStatus = "Error"
)

// Mesh represents a physical site accumulating photo contributions.
// Completed and Hidden are independent of Status: Completed gates intake,
// Hidden gates public visibility.
type Mesh struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Country     string     `db:"country" json:"country"`
	State       string     `db:"state" json:"state"`
	District    string     `db:"district" json:"district"`
	Preview     string     `db:"preview" json:"preview"`
	Thumbnail   string     `db:"thumbnail" json:"thumbnail"`
	VerboseID   string     `db:"verbose_id" json:"verbose_id"`
	Status      MeshStatus `db:"status" json:"status"`
	Completed   bool       `db:"completed" json:"completed"`
	Hidden      bool       `db:"hidden" json:"hidden"`

	// Reconstruction settings, fed to the external engine.
	CenterImage string `db:"center_image" json:"center_image"`
	RotaX       int    `db:"rota_x" json:"rota_x"`
	RotaY       int    `db:"rota_y" json:"rota_y"`
	RotaZ       int    `db:"rota_z" json:"rota_z"`
	OrientMesh  bool   `db:"orient_mesh" json:"orient_mesh"`
	MinObsAngle int    `db:"min_obs_angle" json:"min_obs_angle"`
	Denoise     bool   `db:"denoise" json:"denoise"`

	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	ReconstructedAt *time.Time `db:"reconstructed_at" json:"reconstructed_at,omitempty"`
}

// DeriveVerboseID computes the globally unique location slug. Recomputed
// on every save; the persisted value is never trusted as a cache.
func (m *Mesh) DeriveVerboseID() string {
	slug := m.Country + "__" + m.State + "__" + m.District + "__" + m.Name
	return strings.ReplaceAll(slug, " ", "_")
}

// MeshFilter encapsulates allowed search parameters for listing meshes.
type MeshFilter struct {
	Search    string
	Status    MeshStatus
	Completed *bool
	Page      int
	PageSize  int
}
