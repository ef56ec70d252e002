package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadHGY/GenerativeModels/internal/backend/cpu"
	"github.com/chadHGY/GenerativeModels/internal/nn"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

func TestValidateADNOrdering(t *testing.T) {
	for _, ordering := range []string{"", "A", "DA", "NDA", "ADN", "nda"} {
		assert.NoError(t, nn.ValidateADNOrdering(ordering), ordering)
	}
	for _, ordering := range []string{"X", "AA", "NDAN", "AB"} {
		assert.Error(t, nn.ValidateADNOrdering(ordering), ordering)
	}
}

func TestNewADNRejectsBadOrdering(t *testing.T) {
	act, err := nn.NewActivation[*cpu.CPUBackend]("RELU")
	require.NoError(t, err)

	_, err = nn.NewADN("AZ", act, 0)
	assert.Error(t, err)
}

func TestADNAppliesActivation(t *testing.T) {
	backend := testBackend()
	act, err := nn.NewActivation[*cpu.CPUBackend]("RELU")
	require.NoError(t, err)

	adn, err := nn.NewADN("NDA", act, 0)
	require.NoError(t, err)

	input := fromSlice(t, []float32{-1, 2, -3, 4}, tensor.Shape{4}, backend)
	output := adn.Forward(input)
	assert.Equal(t, []float32{0, 2, 0, 4}, output.Data())
}

func TestADNNilActivationIsIdentity(t *testing.T) {
	backend := testBackend()

	adn, err := nn.NewADN[*cpu.CPUBackend]("NDA", nil, 0)
	require.NoError(t, err)

	input := fromSlice(t, []float32{-1, 2}, tensor.Shape{2}, backend)
	assert.Equal(t, input.Data(), adn.Forward(input).Data())
}

func TestADNTrainEnablesDropout(t *testing.T) {
	backend := testBackend()

	adn, err := nn.NewADN[*cpu.CPUBackend]("D", nil, 0.5)
	require.NoError(t, err)
	adn.Train()

	input := tensor.Ones[float32](tensor.Shape{4096}, backend)
	output := adn.Forward(input)

	zeros := 0
	for _, v := range output.Data() {
		if v == 0 {
			zeros++
		}
	}
	assert.Greater(t, zeros, 0)

	adn.Eval()
	assert.Equal(t, input.Data(), adn.Forward(input).Data())
}
