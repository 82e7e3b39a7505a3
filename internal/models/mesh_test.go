package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveVerboseID(t *testing.T) {
	m := Mesh{
		Name:     "Lingaraj Temple",
		Country:  "India",
		State:    "Odisha",
		District: "Khordha",
	}
	assert.Equal(t, "India__Odisha__Khordha__Lingaraj_Temple", m.DeriveVerboseID())
}

func TestDeriveVerboseIDReplacesAllSpaces(t *testing.T) {
	m := Mesh{
		Name:     "Sun Temple of Konark",
		Country:  "India",
		State:    "Odisha",
		District: "Puri District",
	}
	assert.Equal(t, "India__Odisha__Puri_District__Sun_Temple_of_Konark", m.DeriveVerboseID())
}

func TestImageLabelValid(t *testing.T) {
	assert.True(t, ImageLabelNone.Valid())
	assert.True(t, ImageLabelGood.Valid())
	assert.True(t, ImageLabelBad.Valid())
	assert.True(t, ImageLabelNSFW.Valid())
	assert.False(t, ImageLabel("excellent").Valid())
}
