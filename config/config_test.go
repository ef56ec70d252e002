package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Model.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  spatial_dims: 3
  in_channels: 2
  out_channels: 2
  num_levels: 2
  downsample_parameters: [[2, 4, 1, 1], [2, 4, 1, 1]]
  upsample_parameters: [[2, 4, 1, 1, 0], [2, 4, 1, 1, 0]]
threads: 4
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Model.SpatialDims)
	assert.Equal(t, 2, cfg.Model.NumLevels)
	assert.Equal(t, 4, cfg.Threads)

	// Untouched fields keep their defaults.
	assert.Equal(t, 96, cfg.Model.NumChannels)
	assert.InDelta(t, 0.25, cfg.Model.CommitmentCost, 1e-9)
	assert.Equal(t, "RELU", cfg.Model.Act)
}

func TestParseRejectsInvalidModel(t *testing.T) {
	_, err := Parse([]byte(`
model:
  num_levels: 2
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downsample")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("model: ["))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  dropout: 0.2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cfg.Model.Dropout, 1e-9)
}

func TestBackendHonorsThreads(t *testing.T) {
	cfg, err := Parse([]byte("threads: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Backend().Workers())

	// Zero means all cores.
	assert.GreaterOrEqual(t, Default().Backend().Workers(), 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
