// Package serialization implements the .gm model container format.
//
// A .gm file holds a model state dictionary:
//
//	0x00  magic "GMDL" (4 bytes)
//	0x04  format version (uint32 LE)
//	0x08  flags (uint32 LE, bit 0 = gzip-compressed data section)
//	0x0C  reserved (uint32 LE, zero)
//	0x10  JSON header size (uint64 LE)
//	0x18  xxhash64 digest of the uncompressed data section (uint64 LE)
//	0x20  JSON header
//	....  zero padding to a 64-byte boundary
//	....  data section: tensor bytes at the offsets the header declares,
//	      as a single gzip stream when the compressed flag is set
//
// Tensors are laid out in sorted name order so identical state dicts
// produce identical files.
package serialization

import (
	"time"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Format constants.
const (
	Magic           = "GMDL"
	FormatVersion   = 1
	FixedHeaderSize = 32
	DataAlignment   = 64
)

// Flags for the fixed header.
const (
	FlagCompressed uint32 = 1 << 0
)

// Limits enforced when reading untrusted files.
const (
	MaxHeaderSize    = 64 << 20 // 64 MiB of JSON is already absurd
	MaxTensors       = 1 << 20
	MaxTensorNameLen = 1024
	MaxDataSize      = int64(64) << 30 // 64 GiB data section ceiling
)

// Header is the JSON header of a .gm file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	LibraryVersion string            `json:"library_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`
}

// Data type names used in headers.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt64   = "int64"
)

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	case tensor.Int64:
		return DTypeInt64
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	case DTypeInt64:
		return tensor.Int64, true
	default:
		return 0, false
	}
}
