package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("active")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	s, err = ParseStatus("inactive")
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, s)

	for _, bad := range []string{"", "Active", "ACTIVE", "deleted", "invalid_status"} {
		_, err := ParseStatus(bad)
		var invalid *InvalidStatusError
		require.ErrorAs(t, err, &invalid, "value %q", bad)
		assert.Equal(t, bad+" is not a valid status", err.Error())
	}
}

func TestStatusZeroValueIsInvalid(t *testing.T) {
	var s Status
	assert.False(t, s.Valid())

	_, err := json.Marshal(s)
	assert.Error(t, err)

	_, err = s.Value()
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, `"inactive"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"active"`), &s))
	assert.Equal(t, StatusActive, s)

	assert.Error(t, json.Unmarshal([]byte(`"paused"`), &s))
}

func TestStatusSQL(t *testing.T) {
	v, err := StatusActive.Value()
	require.NoError(t, err)
	assert.Equal(t, "active", v)

	var s Status
	require.NoError(t, s.Scan([]byte("inactive")))
	assert.Equal(t, StatusInactive, s)

	require.NoError(t, s.Scan("active"))
	assert.Equal(t, StatusActive, s)

	assert.Error(t, s.Scan(42))
	assert.Error(t, s.Scan("paused"))
}
