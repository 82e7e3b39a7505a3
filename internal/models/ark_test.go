package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validARK() ARK {
	return ARK{
		Ark:          "99999/fk4abc123",
		NAAN:         "99999",
		Shoulder:     "/fk4",
		AssignedName: "abc123",
		URL:          "https://models.example.org/models/run1.glb",
		Metadata:     ARKMetadata{"mesh": "Lingaraj Temple"},
		Commitment:   "maintained per terms",
	}
}

func TestARKValidate(t *testing.T) {
	a := validARK()
	require.NoError(t, a.Validate())
	assert.Equal(t, "ark:/99999/fk4abc123", a.String())
}

func TestARKValidateShoulderMustStartWithSeparator(t *testing.T) {
	a := validARK()
	a.Shoulder = "fk4"
	a.Ark = "99999fk4abc123"
	require.Error(t, a.Validate())
}

func TestARKValidateConcatenationMismatch(t *testing.T) {
	a := validARK()
	a.Ark = "99999/fk4zzz999"
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
}

func TestARKValidateRequiresBoundContent(t *testing.T) {
	a := validARK()
	a.URL = ""
	require.Error(t, a.Validate())

	a = validARK()
	a.Metadata = nil
	require.Error(t, a.Validate())
}

func TestARKMetadataRoundTrip(t *testing.T) {
	m := ARKMetadata{"mesh": "Temple", "images": float64(42)}
	v, err := m.Value()
	require.NoError(t, err)

	var out ARKMetadata
	require.NoError(t, out.Scan(v))
	assert.Equal(t, m, out)
}

func TestARKMetadataScanNil(t *testing.T) {
	var out ARKMetadata
	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
}
