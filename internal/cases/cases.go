// Package cases loads pre-built patient case files. Case files seed demos
// and end-to-end tests; they are not part of the classification contract.
package cases

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

// Case is one pre-built patient presentation with the category the
// deterministic classifier is expected to assign.
type Case struct {
	Name             string               `json:"name"`
	Language         string               `json:"language,omitempty"`
	ExpectedCategory triage.Category      `json:"expected_category,omitempty"`
	Patient          triage.PatientRecord `json:"patient"`
}

// Load reads and validates a single case file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: case files are operator-provided fixtures
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}

	var c Case
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse case file %s: %w", filepath.Base(path), err)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := c.Patient.Validate(); err != nil {
		return nil, fmt.Errorf("case %s: %w", c.Name, err)
	}
	if c.ExpectedCategory != "" {
		if _, ok := triage.ParseCategory(string(c.ExpectedCategory)); !ok {
			return nil, fmt.Errorf("case %s: unknown expected category %q", c.Name, c.ExpectedCategory)
		}
	}
	return &c, nil
}

// LoadDir loads every .json file in dir, sorted by filename.
func LoadDir(dir string) ([]*Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list case files: %w", err)
	}
	sort.Strings(paths)

	cases := make([]*Case, 0, len(paths))
	for _, p := range paths {
		c, err := Load(p)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}
