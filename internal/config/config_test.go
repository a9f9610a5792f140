package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	station := int64(3)

	token, err := GenerateToken(7, "Lab Nurse", "lab@clinic.test", "station", &station)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "station", claims.Role)
	require.NotNil(t, claims.StationID)
	assert.Equal(t, int64(3), *claims.StationID)

	t.Setenv("JWT_SECRET", "other-secret")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := GenerateToken(1, "a", "a@b", "admin", nil)
	assert.Error(t, err)
}

func TestLoadStationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": 1, "display_number": 1, "sequence_order": 1, "name": "accounting"},
		{"id": 2, "display_number": 2, "sequence_order": 2, "name": "blood-type", "silent": true}
	]`), 0o600))

	stations, err := LoadStationsFile(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.True(t, stations[1].Silent)

	_, err = LoadStationsFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("RECALL_STRICT", "true")
	assert.True(t, GetEnvBool("RECALL_STRICT", false))
	t.Setenv("RECALL_STRICT", "nope")
	assert.False(t, GetEnvBool("RECALL_STRICT", false))
}
