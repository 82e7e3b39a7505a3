package models

import "time"

// Contributor is a person submitting images. Banning is email-level: a
// banned contributor is rejected at intake regardless of Active.
type Contributor struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	Banned    bool      `db:"banned" json:"banned"`
	BanReason string    `db:"ban_reason" json:"ban_reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
