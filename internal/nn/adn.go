package nn

import (
	"fmt"
	"strings"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// ADN applies activation and dropout after a convolution, in a
// configurable order given by an ordering string:
//
//	'A' — activation
//	'D' — dropout
//	'N' — normalization slot; accepted for configuration compatibility
//	      and skipped, since the autoencoder blocks here carry no norm
//	      layers
//
// For example ordering "NDA" applies dropout, then activation.
type ADN[B tensor.Backend] struct {
	ordering string
	act      *Activation[B]
	dropout  *Dropout[B]
}

// ValidateADNOrdering reports whether the ordering string only contains
// the runes A, D and N, each at most once.
func ValidateADNOrdering(ordering string) error {
	seen := map[rune]bool{}
	for _, r := range strings.ToUpper(ordering) {
		switch r {
		case 'A', 'D', 'N':
			if seen[r] {
				return fmt.Errorf("adn ordering %q repeats %q", ordering, string(r))
			}
			seen[r] = true
		default:
			return fmt.Errorf("adn ordering %q contains unknown op %q", ordering, string(r))
		}
	}
	return nil
}

// NewADN creates an ADN block. act may be nil (no activation) and
// dropout probability 0 disables dropout.
func NewADN[B tensor.Backend](ordering string, act *Activation[B], dropoutP float64) (*ADN[B], error) {
	if err := ValidateADNOrdering(ordering); err != nil {
		return nil, err
	}
	var dropout *Dropout[B]
	if dropoutP > 0 {
		dropout = NewDropout[B](dropoutP)
	}
	return &ADN[B]{
		ordering: strings.ToUpper(ordering),
		act:      act,
		dropout:  dropout,
	}, nil
}

// Forward applies the configured ops in order.
func (m *ADN[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input
	for _, r := range m.ordering {
		switch r {
		case 'A':
			if m.act != nil {
				out = m.act.Forward(out)
			}
		case 'D':
			if m.dropout != nil {
				out = m.dropout.Forward(out)
			}
		case 'N':
			// No norm layers in this network family.
		}
	}
	return out
}

// Parameters returns an empty slice.
func (m *ADN[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map.
func (m *ADN[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (m *ADN[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// Train propagates training mode to dropout.
func (m *ADN[B]) Train() {
	if m.dropout != nil {
		m.dropout.Train()
	}
}

// Eval propagates evaluation mode to dropout.
func (m *ADN[B]) Eval() {
	if m.dropout != nil {
		m.dropout.Eval()
	}
}
