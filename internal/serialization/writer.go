package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

const libraryVersion = "0.3.0"

// WriteOptions controls how a state dictionary is written.
type WriteOptions struct {
	// ModelType names the network the state dict belongs to, e.g. "VQVAE".
	ModelType string
	// Metadata carries free-form key/value pairs into the header.
	Metadata map[string]string
	// Compress gzips the data section.
	Compress bool
}

// WriteStateDict writes a state dictionary to w in .gm format.
func WriteStateDict(w io.Writer, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion:  FormatVersion,
		LibraryVersion: libraryVersion,
		ModelType:      opts.ModelType,
		CreatedAt:      time.Now().UTC(),
		Tensors:        make([]TensorMeta, 0, len(names)),
		Metadata:       opts.Metadata,
	}

	var offset int64
	var dataBuf bytes.Buffer
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: offset,
			Size:   size,
		})
		dataBuf.Write(raw.Data())
		offset += size
	}

	digest := xxhash.Sum64(dataBuf.Bytes())

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], Magic)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	flags := uint32(0)
	if opts.Compress {
		flags |= FlagCompressed
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], digest)

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	pos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := (DataAlignment - pos%DataAlignment) % DataAlignment; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}

	if opts.Compress {
		gz := gzip.NewWriter(w)
		if _, err := gz.Write(dataBuf.Bytes()); err != nil {
			return fmt.Errorf("write compressed data: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("flush compressed data: %w", err)
		}
		return nil
	}

	if _, err := w.Write(dataBuf.Bytes()); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// SaveStateDict writes a state dictionary to a .gm file at path.
func SaveStateDict(path string, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	//nolint:gosec // G304: the caller picks the model path
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteStateDict(file, stateDict, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
