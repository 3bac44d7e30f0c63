// Package heuristics loads the keyword, extension and allowlist tables that drive sampling.
package heuristics

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed heuristics.yaml
var defaultTable []byte

// Table holds the sampling heuristics.
type Table struct {
	Keywords           map[string]float64 `koanf:"keywords"`
	Extensions         map[string]float64 `koanf:"extensions"`
	SourceExtensions   []string           `koanf:"source_extensions"`
	Exclude            []string           `koanf:"exclude"`
	CoverageReservePct float64            `koanf:"coverage_reserve_pct"`

	allowlist map[string]struct{}
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("heuristics: embedded table is invalid: %v", err))
	}
	return t
}

// Load reads the embedded table and merges the YAML file at path over it.
// An empty path loads the embedded table only.
func Load(path string) (*Table, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultTable), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load embedded heuristics: %w", err)
	}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read heuristics file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load heuristics file %s: %w", path, err)
		}
	}

	var t Table
	if err := k.Unmarshal("", &t); err != nil {
		return nil, fmt.Errorf("failed to decode heuristics: %w", err)
	}
	if err := t.normalize(); err != nil {
		return nil, err
	}
	return &t, nil
}

// normalize lowercases keys, adds the leading dot to extensions and validates weights.
func (t *Table) normalize() error {
	if t.CoverageReservePct < 0 || t.CoverageReservePct > 1 {
		return fmt.Errorf("coverage_reserve_pct must be between 0 and 1 (received %.2f)", t.CoverageReservePct)
	}

	keywords := make(map[string]float64, len(t.Keywords))
	for k, w := range t.Keywords {
		if w < 0 {
			return fmt.Errorf("keyword %q has negative weight %.2f", k, w)
		}
		keywords[strings.ToLower(k)] = w
	}
	t.Keywords = keywords

	extensions := make(map[string]float64, len(t.Extensions))
	for e, w := range t.Extensions {
		if w < 0 {
			return fmt.Errorf("extension %q has negative weight %.2f", e, w)
		}
		extensions[NormalizeExt(e)] = w
	}
	t.Extensions = extensions

	t.allowlist = make(map[string]struct{}, len(t.SourceExtensions))
	for _, e := range t.SourceExtensions {
		t.allowlist[NormalizeExt(e)] = struct{}{}
	}
	return nil
}

// NormalizeExt lowercases e and makes sure it starts with a dot.
func NormalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" || strings.HasPrefix(e, ".") {
		return e
	}
	return "." + e
}

// Allowlist returns the set of extensions a sparse checkout materializes.
func (t *Table) Allowlist() map[string]struct{} {
	return t.allowlist
}

// IsSource reports whether ext is in the sparse checkout allowlist.
func (t *Table) IsSource(ext string) bool {
	_, ok := t.allowlist[ext]
	return ok
}

// Score returns the priority of a file: the weight of every keyword found among
// the path tokens, counted once each, plus the weight of its extension.
func (t *Table) Score(path, ext string) float64 {
	score := t.Extensions[ext]
	seen := make(map[string]struct{})
	for _, token := range tokenize(path) {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		score += t.Keywords[token]
	}
	return score
}

// tokenize splits a path into lowercase tokens on separators and punctuation.
func tokenize(path string) []string {
	return strings.FieldsFunc(strings.ToLower(path), func(r rune) bool {
		switch r {
		case '/', '\\', '-', '_', '.', ' ':
			return true
		default:
			return false
		}
	})
}
