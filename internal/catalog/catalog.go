// Package catalog loads and checks the philosophy catalog.
//
// The catalog document has a top-level "philosophies" list. YAML and JSON
// are both accepted; JSON goes through the YAML decoder.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"PortfolioLens/internal/model"
	"PortfolioLens/internal/rules"
)

//go:embed philosophies.yaml
var defaultCatalog []byte

var (
	ErrEmpty       = errors.New("catalog has no philosophies")
	ErrDuplicateID = errors.New("duplicate philosophy id")
)

var validate = validator.New()

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*model.Catalog, error) {
	cat := &model.Catalog{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(cat); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := Validate(cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Default returns the bundled catalog.
func Default() *model.Catalog {
	cat, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("bundled catalog is invalid: %v", err))
	}
	return cat
}

// Validate checks the catalog schema: every philosophy has an id and a
// display name, ids are unique, and signals carry a name, a rule and
// positive points. Rule text itself is not checked here, see Lint.
func Validate(cat *model.Catalog) error {
	if cat == nil || len(cat.Philosophies) == 0 {
		return ErrEmpty
	}
	if err := validate.Struct(cat); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	seen := make(map[string]bool, len(cat.Philosophies))
	for _, p := range cat.Philosophies {
		if seen[p.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Issue is a rule in the catalog that does not parse.
type Issue struct {
	Philosophy string
	Kind       string // "signal" or "exclusion"
	Name       string
	Rule       string
	Err        error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s %q: %v (rule: %s)", i.Philosophy, i.Kind, i.Name, i.Err, i.Rule)
}

// Lint reports every rule that would compile to a never-matching predicate.
func Lint(cat *model.Catalog) []Issue {
	var issues []Issue
	for _, p := range cat.Philosophies {
		for i, rule := range p.Exclusions {
			if _, err := rules.Parse(rule); err != nil {
				issues = append(issues, Issue{Philosophy: p.ID, Kind: "exclusion", Name: fmt.Sprintf("#%d", i+1), Rule: rule, Err: err})
			}
		}
		for _, s := range p.Detection.Signals {
			if _, err := rules.Parse(s.Rule); err != nil {
				issues = append(issues, Issue{Philosophy: p.ID, Kind: "signal", Name: s.Name, Rule: s.Rule, Err: err})
			}
		}
	}
	return issues
}
