// Copyright 2025 The GenerativeModels Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure-Go CPU compute backend.
//
// The backend parallelizes convolution and codebook search across
// goroutines. Use New for parallel execution or NewSequential for
// deterministic single-threaded debugging.
package cpu

import (
	"github.com/chadHGY/GenerativeModels/internal/backend/cpu"
	"github.com/chadHGY/GenerativeModels/internal/tensor"
)

// Backend is the CPU compute backend.
type Backend = cpu.CPUBackend

// New creates a CPU backend that parallelizes across all CPU cores.
func New() *Backend {
	return cpu.New()
}

// NewSequential creates a single-threaded CPU backend.
func NewSequential() *Backend {
	return cpu.NewSequential()
}

// NewWithWorkers creates a CPU backend with a fixed worker count.
func NewWithWorkers(n int) *Backend {
	return cpu.NewWithWorkers(n)
}

var _ tensor.Backend = (*Backend)(nil)
