package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/huangsam/reposcan/schema"
)

// analyzeResult carries the analyzer return values across the per-file goroutine.
type analyzeResult struct {
	out schema.AnalyzerOutput
	err error
}

// readContent loads a file, memory-mapping it when it is larger than threshold.
// The release func must be called once the content is no longer used.
func readContent(path string, threshold int64) ([]byte, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%s is not a regular file", path)
	}

	if info.Size() <= threshold {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return content, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	release := func() {
		_ = m.Unmap()
		_ = f.Close()
	}
	return m, release, nil
}

// scanFile reads and analyzes one candidate. A stopped scan does not cut the
// file short: the analyzer runs under the per-file deadline only. The second
// return value is false when the scheduler was abandoned mid-file.
func (s *Scheduler) scanFile(ctx context.Context, c schema.FileCandidate) (schema.FileScanResult, bool) {
	start := time.Now()
	result := schema.FileScanResult{Candidate: c}
	finish := func(status schema.FileStatus, err error) (schema.FileScanResult, bool) {
		result.Status = status
		if err != nil {
			result.Err = err.Error()
		}
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result, true
	}

	content, release, err := readContent(filepath.Join(s.root, filepath.FromSlash(c.Path)), s.cfg.MmapThresholdBytes)
	if err != nil {
		return finish(schema.StatusReadError, err)
	}

	fileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PerFileTimeout)
	defer cancel()

	// The analyzer owns content until it returns, even if we stop waiting.
	done := make(chan analyzeResult, 1)
	go func() {
		defer release()
		out, err := s.analyzer.Analyze(fileCtx, content, c.Path)
		done <- analyzeResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		switch {
		case r.err == nil:
			result.Output = r.out
			return finish(schema.StatusOK, nil)
		case errors.Is(r.err, context.DeadlineExceeded) && fileCtx.Err() != nil:
			return finish(schema.StatusTimeout, fmt.Errorf("analysis exceeded %s", s.cfg.PerFileTimeout))
		default:
			return finish(schema.StatusAnalyzerError, r.err)
		}
	case <-fileCtx.Done():
		return finish(schema.StatusTimeout, fmt.Errorf("analysis exceeded %s", s.cfg.PerFileTimeout))
	case <-s.abandoned:
		return result, false
	}
}

// runBatch scans the files of b in order and reports whether every file produced a result.
// A stopped ctx is honored between files.
func (s *Scheduler) runBatch(ctx context.Context, b schema.Batch, out chan<- schema.FileScanResult) bool {
	for _, c := range b.Files {
		if ctx.Err() != nil {
			return false
		}
		r, ok := s.scanFile(ctx, c)
		if !ok {
			return false
		}
		s.metrics.ObserveFile(r.Status)
		select {
		case out <- r:
			s.filesDone.Add(1)
		case <-s.abandoned:
			return false
		}
	}
	return true
}
