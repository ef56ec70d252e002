package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Model is a deserialized .gm file.
type Model struct {
	Header  Header
	tensors map[string]*tensor.RawTensor
}

// StateDict returns the tensors keyed by name.
func (m *Model) StateDict() map[string]*tensor.RawTensor {
	return m.tensors
}

// Tensor returns the named tensor, or nil if absent.
func (m *Model) Tensor(name string) *tensor.RawTensor {
	return m.tensors[name]
}

// ReadStateDict reads a .gm file from r, verifying the data digest.
func ReadStateDict(r io.Reader) (*Model, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("read fixed header: %w", err)
	}

	if string(fixed[0:4]) != Magic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, string(fixed[0:4]))
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	wantDigest := binary.LittleEndian.Uint64(fixed[24:32])

	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	dataSize, err := validateTensorMetas(header.Tensors)
	if err != nil {
		return nil, err
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	if padding := (DataAlignment - pos%DataAlignment) % DataAlignment; padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	data := make([]byte, dataSize)
	if flags&FlagCompressed != 0 {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open compressed data: %w", err)
		}
		if _, err := io.ReadFull(gz, data); err != nil {
			return nil, fmt.Errorf("read compressed data: %w", err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("close compressed data: %w", err)
		}
	} else if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	if digest := xxhash.Sum64(data); digest != wantDigest {
		return nil, fmt.Errorf("%w: want %016x, got %016x", ErrDigestMismatch, wantDigest, digest)
	}

	tensors := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dtype, ok := stringToDtype(meta.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %q: unknown dtype %q", meta.Name, meta.DType)
		}
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, &ValidationError{
				Err:    ErrOutOfBounds,
				Tensor: meta.Name,
				Detail: fmt.Sprintf("shape %v needs %d bytes, header claims %d", meta.Shape, raw.ByteSize(), meta.Size),
			}
		}
		copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
		tensors[meta.Name] = raw
	}

	return &Model{Header: header, tensors: tensors}, nil
}

// LoadStateDict reads a .gm file from path.
func LoadStateDict(path string) (*Model, error) {
	//nolint:gosec // G304: the caller picks the model path
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ReadStateDict(file)
}

// validateTensorMetas rejects malformed or overlapping tensor layouts and
// returns the total data section size.
func validateTensorMetas(metas []TensorMeta) (int64, error) {
	if len(metas) > MaxTensors {
		return 0, fmt.Errorf("%w: %d", ErrTooManyTensors, len(metas))
	}

	sorted := make([]TensorMeta, len(metas))
	copy(sorted, metas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var end int64
	for _, meta := range sorted {
		if len(meta.Name) == 0 || strings.ContainsAny(meta.Name, "\x00\n") {
			return 0, &ValidationError{Err: ErrInvalidTensorName, Tensor: meta.Name, Detail: "empty or control characters"}
		}
		if len(meta.Name) > MaxTensorNameLen {
			return 0, &ValidationError{Err: ErrTensorNameTooLong, Tensor: meta.Name[:32] + "...", Detail: fmt.Sprintf("%d bytes", len(meta.Name))}
		}
		if meta.Offset < 0 || meta.Size < 0 {
			return 0, &ValidationError{Err: ErrNegativeOffset, Tensor: meta.Name, Detail: fmt.Sprintf("offset %d size %d", meta.Offset, meta.Size)}
		}
		// Checked against the cap before summing so offset+size cannot
		// overflow int64 and turn a malicious header into a panic.
		if meta.Size > MaxDataSize || meta.Offset > MaxDataSize-meta.Size {
			return 0, &ValidationError{Err: ErrDataTooLarge, Tensor: meta.Name, Detail: fmt.Sprintf("offset %d size %d exceeds %d byte limit", meta.Offset, meta.Size, MaxDataSize)}
		}
		if meta.Offset < end {
			return 0, &ValidationError{Err: ErrOffsetOverlap, Tensor: meta.Name, Detail: fmt.Sprintf("offset %d before previous end %d", meta.Offset, end)}
		}
		end = meta.Offset + meta.Size
	}
	return end, nil
}
