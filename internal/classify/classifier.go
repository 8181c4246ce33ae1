// Package classify assigns every distinct product name to exactly one
// reporting category. An exact-match catalog table covers the historically
// known products; ordered keyword rules cover new names that follow the
// catalog's naming conventions; a fallback category guarantees totality.
package classify

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"sales-dashboard/internal/models"
)

// The catalog ships with the binary; a config-supplied table path replaces
// it without a rebuild.
//
//go:embed category_table.toml
var defaultTable []byte

// Rule is one keyword fallback: a product name containing any keyword
// (case-insensitive) gets the rule's category. Rules apply in order, first
// match wins.
type Rule struct {
	Keywords []string        `toml:"keywords"`
	Category models.Category `toml:"category"`
}

type tableFile struct {
	Fallback models.Category `toml:"fallback"`
	Rules    []Rule          `toml:"rule"`
	Entries  []tableEntry    `toml:"entry"`
}

type tableEntry struct {
	Product  string          `toml:"product"`
	Category models.Category `toml:"category"`
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	exact    map[string]models.Category
	rules    []Rule
	fallback models.Category
}

// NewDefault builds a classifier from the embedded catalog.
func NewDefault() (*Classifier, error) {
	return Load(defaultTable)
}

// LoadFile builds a classifier from an on-disk TOML table.
func LoadFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	return Load(data)
}

// Load parses a TOML category table. Exact-match products are kept
// byte-for-byte, incidental whitespace included: normalizing them would
// silently change classification outcomes against the source system.
func Load(data []byte) (*Classifier, error) {
	var file tableFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}

	if file.Fallback == "" {
		file.Fallback = models.CategoryMiscellaneous
	}
	for i, rule := range file.Rules {
		if len(rule.Keywords) == 0 || rule.Category == "" {
			return nil, fmt.Errorf("rule %d: keywords and category are required", i)
		}
	}

	exact := make(map[string]models.Category, len(file.Entries))
	for i, entry := range file.Entries {
		if entry.Product == "" || entry.Category == "" {
			return nil, fmt.Errorf("entry %d: product and category are required", i)
		}
		exact[entry.Product] = entry.Category
	}

	return &Classifier{
		exact:    exact,
		rules:    file.Rules,
		fallback: file.Fallback,
	}, nil
}

// Classify returns a total mapping over the given product names: exact table
// match first, then keyword rules in order, then the fallback category. The
// result does not depend on the order of names.
func (c *Classifier) Classify(names []string) map[string]models.Category {
	mapping := make(map[string]models.Category, len(names))
	for _, name := range names {
		mapping[name] = c.classifyOne(name)
	}
	return mapping
}

func (c *Classifier) classifyOne(name string) models.Category {
	if category, ok := c.exact[name]; ok {
		return category
	}

	lower := strings.ToLower(name)
	for _, rule := range c.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lower, keyword) {
				return rule.Category
			}
		}
	}

	return c.fallback
}

// Categories lists every distinct category label the classifier can emit,
// sorted, for building filter widgets.
func (c *Classifier) Categories() []models.Category {
	seen := map[models.Category]struct{}{c.fallback: {}}
	for _, category := range c.exact {
		seen[category] = struct{}{}
	}
	for _, rule := range c.rules {
		seen[rule.Category] = struct{}{}
	}

	categories := make([]models.Category, 0, len(seen))
	for category := range seen {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// UnmatchedTableEntries reports table products absent from the observed
// name set. Some table entries carry trailing or doubled spaces; whether
// that is intentional is a data-owner question, so mismatches are surfaced
// for review instead of being auto-corrected.
func (c *Classifier) UnmatchedTableEntries(names []string) []string {
	observed := make(map[string]struct{}, len(names))
	for _, name := range names {
		observed[name] = struct{}{}
	}

	var unmatched []string
	for product := range c.exact {
		if _, ok := observed[product]; !ok {
			unmatched = append(unmatched, product)
		}
	}
	sort.Strings(unmatched)
	return unmatched
}

// Apply stamps each record's category from the mapping. Names missing from
// the mapping only occur when the mapping was built from a different name
// set than the records'; they get Uncategorized rather than an empty label.
func Apply(records []models.SalesRecord, mapping map[string]models.Category) {
	for i := range records {
		if category, ok := mapping[records[i].ProductName]; ok {
			records[i].Category = category
		} else {
			records[i].Category = models.CategoryUncategorized
		}
	}
}
