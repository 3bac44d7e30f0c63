// Package sysmem samples process and host memory.
package sysmem

import (
	"fmt"
	"os"
	"runtime"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Sampler reports memory usage as max(process RSS, Go HeapInuse).
// RSS covers mapped files and cgo allocations, HeapInuse reacts faster to Go allocations.
type Sampler struct {
	proc *process.Process
}

var _ contract.MemorySampler = &Sampler{} // Compile-time check

// NewSampler creates a sampler for the current process.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open current process: %w", err)
	}
	return &Sampler{proc: proc}, nil
}

// Sample implements the MemorySampler interface.
func (s *Sampler) Sample() (uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage := ms.HeapInuse

	info, err := s.proc.MemoryInfo()
	if err != nil {
		return usage, fmt.Errorf("failed to read process memory: %w", err)
	}
	return max(usage, info.RSS), nil
}

// Available implements the MemorySampler interface.
func (s *Sampler) Available() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read system memory: %w", err)
	}
	return vm.Available, nil
}
