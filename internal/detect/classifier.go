package detect

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"adpulse/internal/pkg/money"
)

// Uncategorized is returned when no rule matches.
const Uncategorized = "uncategorized"

//go:embed rules.yaml
var defaultRules []byte

type Rules struct {
	Categories []CategoryRule `yaml:"categories"`
}

type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type Classification struct {
	Category   string         `json:"category"`
	Confidence float64        `json:"confidence"`
	Hits       map[string]int `json:"hits,omitempty"`
	// Ranking lists every category with hits, most hits first.
	Ranking []string `json:"ranking,omitempty"`
}

type category struct {
	name     string
	patterns []*regexp.Regexp
}

type Classifier struct {
	categories []category
}

// NewClassifier loads rules from path, or the built-in table when path is
// empty.
func NewClassifier(path string) (*Classifier, error) {
	raw := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read classifier rules: %w", err)
		}
		raw = b
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (*Classifier, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse classifier rules: %w", err)
	}
	if len(rules.Categories) == 0 {
		return nil, fmt.Errorf("classifier rules define no categories")
	}
	c := &Classifier{}
	seen := map[string]bool{}
	for _, r := range rules.Categories {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("classifier rule without a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate classifier category %q", name)
		}
		seen[name] = true
		cat := category{name: name}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			cat.patterns = append(cat.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		c.categories = append(c.categories, cat)
	}
	return c, nil
}

// Classify counts keyword hits per category. Confidence is the best
// category's share of all hits; ties go to the category listed first.
func (c *Classifier) Classify(text string) Classification {
	lower := strings.ToLower(text)
	hits := map[string]int{}
	total, best, bestName := 0, 0, ""
	for _, cat := range c.categories {
		n := 0
		for _, p := range cat.patterns {
			n += len(p.FindAllStringIndex(lower, -1))
		}
		if n == 0 {
			continue
		}
		hits[cat.name] = n
		total += n
		if n > best {
			best, bestName = n, cat.name
		}
	}
	if total == 0 {
		return Classification{Category: Uncategorized}
	}
	return Classification{
		Category:   bestName,
		Confidence: money.Ratio(float64(best), float64(total), 2),
		Hits:       hits,
		Ranking:    rankHits(hits),
	}
}

// Categories lists rule names in file order.
func (c *Classifier) Categories() []string {
	out := make([]string, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.name
	}
	return out
}

func rankHits(hits map[string]int) []string {
	out := make([]string, 0, len(hits))
	for name := range hits {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		if hits[out[i]] != hits[out[j]] {
			return hits[out[i]] > hits[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
