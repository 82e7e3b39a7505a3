package models

import "time"

// ImageLabel records the vetting outcome for a contributed image. The
// empty label means unreviewed.
type ImageLabel string

const (
	ImageLabelNone ImageLabel = ""
	ImageLabelNSFW ImageLabel = "nsfw"
	ImageLabelGood ImageLabel = "good"
	ImageLabelBad  ImageLabel = "bad"
)

// Valid reports whether the label is one of the known values.
func (l ImageLabel) Valid() bool {
	switch l {
	case ImageLabelNone, ImageLabelNSFW, ImageLabelGood, ImageLabelBad:
		return true
	}
	return false
}

// Image is one photograph within a contribution. A run may additionally
// reference the images it consumed through the run_images join.
type Image struct {
	ID             string     `db:"id" json:"id"`
	ContributionID string     `db:"contribution_id" json:"contribution_id"`
	FilePath       string     `db:"file_path" json:"file_path"`
	Label          ImageLabel `db:"label" json:"label"`
	Remark         string     `db:"remark" json:"remark,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
