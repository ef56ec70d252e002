package nn

import (
	"fmt"
	"strings"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Embedding initialization strategies for the quantizer codebook.
const (
	EmbeddingInitNormal         = "normal"
	EmbeddingInitKaimingUniform = "kaiming_uniform"
)

// EMAQuantizer is a vector-quantization codebook with exponential-moving-
// average updates (van den Oord et al., "Neural Discrete Representation
// Learning").
//
// The codebook holds numEmbeddings vectors of embeddingDim values. Quantize
// snaps each spatial position of a [N, D, *S] latent to its nearest codebook
// vector and returns the commitment loss. In training mode each call also
// moves the codebook towards the assigned latents:
//
//	N_k   <- decay*N_k   + (1-decay)*count_k
//	m_k   <- decay*m_k   + (1-decay)*sum_of_assigned_latents_k
//	e_k   <- m_k / smoothed(N_k)
//
// where smoothed applies Laplace smoothing with epsilon so unused codes
// never divide by zero.
type EMAQuantizer[B tensor.Backend] struct {
	spatialDims    int
	numEmbeddings  int
	embeddingDim   int
	commitmentCost float32
	decay          float32
	epsilon        float32

	embedding   *Parameter[B] // [K, D] codebook vectors
	clusterSize *Parameter[B] // [K] EMA assignment counts
	embedAvg    *Parameter[B] // [K, D] EMA assigned-latent sums

	training bool
	backend  B
}

// NewEMAQuantizer creates a codebook of numEmbeddings vectors of
// embeddingDim values for latents with spatialDims spatial dimensions.
func NewEMAQuantizer[B tensor.Backend](
	spatialDims, numEmbeddings, embeddingDim int,
	commitmentCost, decay, epsilon float32,
	embeddingInit string,
	backend B,
) (*EMAQuantizer[B], error) {
	if spatialDims < 1 || spatialDims > 3 {
		return nil, fmt.Errorf("quantizer: spatial dims must be 1-3, got %d", spatialDims)
	}
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		return nil, fmt.Errorf("quantizer: invalid codebook size %dx%d", numEmbeddings, embeddingDim)
	}
	if decay < 0 || decay >= 1 {
		return nil, fmt.Errorf("quantizer: decay %v must be in [0, 1)", decay)
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("quantizer: epsilon %v must be positive", epsilon)
	}

	shape := tensor.Shape{numEmbeddings, embeddingDim}
	var embedding *tensor.Tensor[float32, B]
	switch strings.ToLower(embeddingInit) {
	case EmbeddingInitNormal:
		embedding = Randn(shape, backend)
	case EmbeddingInitKaimingUniform:
		embedding = KaimingUniform(embeddingDim, shape, backend)
	default:
		return nil, fmt.Errorf("quantizer: unknown embedding init %q", embeddingInit)
	}

	return &EMAQuantizer[B]{
		spatialDims:    spatialDims,
		numEmbeddings:  numEmbeddings,
		embeddingDim:   embeddingDim,
		commitmentCost: commitmentCost,
		decay:          decay,
		epsilon:        epsilon,
		embedding:      NewParameter("quantizer.embedding", embedding),
		clusterSize:    NewParameter("quantizer.cluster_size", Zeros(tensor.Shape{numEmbeddings}, backend)),
		embedAvg:       NewParameter("quantizer.embed_avg", embedding.Clone()),
		backend:        backend,
	}, nil
}

// Quantize snaps a latent [N, D, *S] to the codebook.
//
// It returns the quantized latent with the same shape, the commitment loss
// as a [1]-shaped tensor, and the selected codebook indices as an int64
// tensor shaped [N, *S]. In training mode the codebook is EMA-updated from
// the latents before they are re-embedded.
func (q *EMAQuantizer[B]) Quantize(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B], *tensor.Tensor[int64, B]) {
	shape := x.Shape()
	if len(shape) != q.spatialDims+2 {
		panic(fmt.Sprintf("quantizer: expected %dD latent [N,D,*S], got shape %v", q.spatialDims+2, shape))
	}
	if shape[1] != q.embeddingDim {
		panic(fmt.Sprintf("quantizer: latent channels %d != embedding dim %d", shape[1], q.embeddingDim))
	}

	// [N, D, *S] -> [N, *S, D] -> [M, D]
	flatRaw := q.backend.Reshape(
		q.backend.Permute(x.Raw(), channelsLastAxes(q.spatialDims)...),
		tensor.Shape{shape.NumElements() / q.embeddingDim, q.embeddingDim},
	)

	distances := q.backend.SquaredDistance(flatRaw, q.embedding.Tensor().Raw())
	indicesRaw := q.backend.ArgminRows(distances)

	if q.training {
		q.emaUpdate(flatRaw, indicesRaw)
	}

	indexShape := append(tensor.Shape{shape[0]}, shape[2:]...)
	indices := tensor.New[int64, B](q.backend.Reshape(indicesRaw, indexShape), q.backend)

	quantized := q.Embed(indices)

	// Commitment loss: how far the encoder output strayed from its codes.
	diff := q.backend.Sub(quantized.Raw(), x.Raw())
	loss := q.backend.MulScalar(q.backend.Mean(q.backend.Mul(diff, diff)), q.commitmentCost)

	return quantized, tensor.New[float32, B](loss, q.backend), indices
}

// Embed maps discrete codebook indices [N, *S] back to a latent [N, D, *S].
func (q *EMAQuantizer[B]) Embed(indices *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	shape := indices.Shape()
	if len(shape) != q.spatialDims+1 {
		panic(fmt.Sprintf("quantizer: expected %dD indices [N,*S], got shape %v", q.spatialDims+1, shape))
	}

	// [N, *S] -> [N, *S, D] -> [N, D, *S]
	gathered := q.backend.Embedding(q.embedding.Tensor().Raw(), indices.Raw())
	moved := q.backend.Permute(gathered, channelsFirstAxes(q.spatialDims)...)
	return tensor.New[float32, B](moved, q.backend)
}

// emaUpdate moves the codebook towards the latents assigned to each code.
func (q *EMAQuantizer[B]) emaUpdate(flat, indices *tensor.RawTensor) {
	flatData := flat.AsFloat32()
	idxData := indices.AsInt64()
	k, d := q.numEmbeddings, q.embeddingDim

	counts := make([]float32, k)
	sums := make([]float32, k*d)
	for i, idx := range idxData {
		counts[idx]++
		row := flatData[i*d : (i+1)*d]
		dst := sums[int(idx)*d : (int(idx)+1)*d]
		for j, v := range row {
			dst[j] += v
		}
	}

	clusterSize := q.clusterSize.Tensor().Data()
	embedAvg := q.embedAvg.Tensor().Data()
	embedding := q.embedding.Tensor().Data()

	var total float32
	for i := 0; i < k; i++ {
		clusterSize[i] = q.decay*clusterSize[i] + (1-q.decay)*counts[i]
		total += clusterSize[i]
	}
	for i := range embedAvg {
		embedAvg[i] = q.decay*embedAvg[i] + (1-q.decay)*sums[i]
	}

	// Laplace smoothing keeps unused codes well-defined.
	denomScale := total + float32(k)*q.epsilon
	for i := 0; i < k; i++ {
		smoothed := (clusterSize[i] + q.epsilon) / denomScale * total
		for j := 0; j < d; j++ {
			embedding[i*d+j] = embedAvg[i*d+j] / smoothed
		}
	}
}

// Parameters returns the codebook parameter.
//
// The EMA statistics are state, not trainable parameters; they appear in
// the state dict but not here.
func (q *EMAQuantizer[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{q.embedding}
}

// StateDict returns the codebook and its EMA statistics.
func (q *EMAQuantizer[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"embedding":    q.embedding.Tensor().Raw(),
		"cluster_size": q.clusterSize.Tensor().Raw(),
		"embed_avg":    q.embedAvg.Tensor().Raw(),
	}
}

// LoadStateDict loads the codebook and its EMA statistics.
func (q *EMAQuantizer[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParam(stateDict, "embedding", q.embedding); err != nil {
		return fmt.Errorf("quantizer: %w", err)
	}
	if err := loadParam(stateDict, "cluster_size", q.clusterSize); err != nil {
		return fmt.Errorf("quantizer: %w", err)
	}
	if err := loadParam(stateDict, "embed_avg", q.embedAvg); err != nil {
		return fmt.Errorf("quantizer: %w", err)
	}
	return nil
}

// Train enables EMA codebook updates.
func (q *EMAQuantizer[B]) Train() {
	q.training = true
}

// Eval disables EMA codebook updates.
func (q *EMAQuantizer[B]) Eval() {
	q.training = false
}

// NumEmbeddings returns the codebook size.
func (q *EMAQuantizer[B]) NumEmbeddings() int {
	return q.numEmbeddings
}

// EmbeddingDim returns the codebook vector size.
func (q *EMAQuantizer[B]) EmbeddingDim() int {
	return q.embeddingDim
}

// channelsLastAxes returns the permutation [0, 2..R+1, 1] moving the
// channel dim last.
func channelsLastAxes(spatialDims int) []int {
	axes := make([]int, 0, spatialDims+2)
	axes = append(axes, 0)
	for i := 0; i < spatialDims; i++ {
		axes = append(axes, i+2)
	}
	return append(axes, 1)
}

// channelsFirstAxes returns the permutation [0, R+1, 1..R] moving the
// channel dim back after the batch dim.
func channelsFirstAxes(spatialDims int) []int {
	axes := make([]int, 0, spatialDims+2)
	axes = append(axes, 0, spatialDims+1)
	for i := 0; i < spatialDims; i++ {
		axes = append(axes, i+1)
	}
	return axes
}
