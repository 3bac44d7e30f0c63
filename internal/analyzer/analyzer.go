// Package analyzer provides the default content analyzer, backed by the gitleaks rule set.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is a redacted secret match inside one file.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
	StartColumn int    `json:"start_column"`
	EndColumn   int    `json:"end_column"`
	Match       string `json:"match"` // redacted
}

// SecretAnalyzer detects secrets with the default gitleaks configuration.
// Detectors are expensive to build and not safe for concurrent use, so they are pooled.
type SecretAnalyzer struct {
	pool sync.Pool
}

var _ contract.ContentAnalyzer = &SecretAnalyzer{} // Compile-time check

// NewSecretAnalyzer builds the analyzer and validates the rule set once.
func NewSecretAnalyzer() (*SecretAnalyzer, error) {
	first, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load gitleaks rules: %w", err)
	}
	a := &SecretAnalyzer{}
	a.pool.New = func() any {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil
		}
		return d
	}
	a.pool.Put(first)
	return a, nil
}

// Analyze implements the ContentAnalyzer interface.
// The content is copied into a string for detection and never retained.
// Binary content is matched against path rules only.
func (a *SecretAnalyzer) Analyze(ctx context.Context, content []byte, path string) (schema.AnalyzerOutput, error) {
	if err := ctx.Err(); err != nil {
		return schema.AnalyzerOutput{}, err
	}

	detector, ok := a.pool.Get().(*detect.Detector)
	if !ok || detector == nil {
		return schema.AnalyzerOutput{}, fmt.Errorf("no detector available for %s", path)
	}
	defer a.pool.Put(detector)

	fragment := detect.Fragment{FilePath: filepath.ToSlash(path)}
	if !isBinary(content) {
		fragment.Raw = string(content)
	}
	raw := detector.DetectContext(ctx, fragment)
	// DetectContext stops early without an error; a partial match set is discarded.
	if err := ctx.Err(); err != nil {
		return schema.AnalyzerOutput{}, err
	}
	if len(raw) == 0 {
		return schema.AnalyzerOutput{}, nil
	}

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			StartColumn: f.StartColumn,
			EndColumn:   f.EndColumn,
			Match:       Redact(f.Secret),
		})
	}
	payload, err := json.Marshal(findings)
	if err != nil {
		return schema.AnalyzerOutput{}, fmt.Errorf("failed to encode findings for %s: %w", path, err)
	}
	return schema.AnalyzerOutput{FindingCount: len(findings), Payload: payload}, nil
}

// Redact keeps a short prefix of long secrets and masks the rest.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", 4)
}

// isBinary applies the usual NUL byte heuristic to the first 8000 bytes.
func isBinary(content []byte) bool {
	n := min(len(content), 8000)
	for _, b := range content[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
