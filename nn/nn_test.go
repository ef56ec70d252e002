package nn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadHGY/GenerativeModels/backend/cpu"
	"github.com/chadHGY/GenerativeModels/nn"
)

func TestSaveLoadModuleRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := nn.NewConv(2, 3, 8, 3, 1, 1, 1, true, backend)

	path := filepath.Join(t.TempDir(), "conv.gm")
	require.NoError(t, nn.Save[*cpu.Backend](path, src, "Conv"))

	dst := nn.NewConv(2, 3, 8, 3, 1, 1, 1, true, backend)
	require.NoError(t, nn.Load[*cpu.Backend](path, dst))

	want := src.StateDict()
	got := dst.StateDict()
	require.Len(t, got, len(want))
	for name, raw := range want {
		require.Contains(t, got, name)
		assert.Equal(t, raw.Data(), got[name].Data(), name)
	}
}

func TestLoadRejectsMismatchedArchitecture(t *testing.T) {
	backend := cpu.New()
	src := nn.NewConv(2, 3, 8, 3, 1, 1, 1, true, backend)

	path := filepath.Join(t.TempDir(), "conv.gm")
	require.NoError(t, nn.Save[*cpu.Backend](path, src, "Conv"))

	other := nn.NewConv(2, 3, 8, 5, 1, 1, 2, true, backend)
	assert.Error(t, nn.Load[*cpu.Backend](path, other))
}

func TestLoadMissingFile(t *testing.T) {
	backend := cpu.New()
	m := nn.NewConv(1, 1, 1, 3, 1, 1, 1, false, backend)
	assert.Error(t, nn.Load[*cpu.Backend](filepath.Join(t.TempDir(), "nope.gm"), m))
}
