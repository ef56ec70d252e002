package tensor

// Backend defines the interface that compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The op surface is the one the generative networks in this library need:
// elementwise arithmetic, N-dimensional (transposed) convolution, the
// activations used by the autoencoder blocks, reductions, and the codebook
// lookup primitives of the vector quantizer.
type Backend interface {
	// Element-wise binary operations. Operands must have identical shapes;
	// general broadcasting is intentionally not part of this interface.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar)
	AddScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor

	// Convolutional operations over 1, 2 or 3 spatial dimensions.
	//
	// ConvND input [N, C_in, *S], kernel [C_out, C_in, *K], bias [C_out] or nil.
	// ConvTransposeND input [N, C_in, *S], kernel [C_in, C_out, *K],
	// bias [C_out] or nil. Slice parameters carry one entry per spatial dim.
	ConvND(input, kernel, bias *RawTensor, stride, dilation, padding []int) *RawTensor
	ConvTransposeND(input, kernel, bias *RawTensor, stride, dilation, padding, outputPadding []int) *RawTensor

	// Activation functions
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, negativeSlope float64) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor  // total sum, result shape [1]
	Mean(x *RawTensor) *RawTensor // total mean, result shape [1]

	// Codebook primitives.
	//
	// SquaredDistance computes pairwise squared L2 distances between the
	// rows of a [M, D] and b [K, D], producing [M, K].
	// ArgminRows returns the per-row argmin of a [M, K] matrix as int64 [M].
	// Embedding gathers rows of weight [K, D] by int64 indices, producing
	// a tensor shaped indices.Shape() + [D].
	SquaredDistance(a, b *RawTensor) *RawTensor
	ArgminRows(x *RawTensor) *RawTensor
	Embedding(weight, indices *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Permute(t *RawTensor, axes ...int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
