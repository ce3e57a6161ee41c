package engine

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// StressResetTitle is the stress override template used when a catalog does not name one.
const StressResetTitle = "Nervous System Reset"

// ErrInvalidCatalog is returned when a catalog fails validation at load time.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the closed, read-only set of templates grouped by category.
// It is safe to share across goroutines once loaded.
type Catalog struct {
	version     string
	byCategory  map[Category][]Template
	stressReset Template
}

type catalogFile struct {
	Version     string         `yaml:"version"`
	StressReset string         `yaml:"stress_reset"`
	Templates   []templateFile `yaml:"templates"`
}

type templateFile struct {
	Title            string        `yaml:"title"`
	Category         string        `yaml:"category"`
	FocusArea        string        `yaml:"focus_area"`
	Coach            string        `yaml:"coach"`
	DurationMinutes  int           `yaml:"duration_minutes"`
	BaseIntensity    float64       `yaml:"base_intensity"`
	Instructions     []Instruction `yaml:"instructions"`
	ClinicalEvidence []string      `yaml:"clinical_evidence"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads the catalog at path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	return buildCatalog(file)
}

func buildCatalog(file catalogFile) (*Catalog, error) {
	if strings.TrimSpace(file.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	c := &Catalog{
		version:    strings.TrimSpace(file.Version),
		byCategory: make(map[Category][]Template, len(categoryOrder)),
	}
	seen := make(map[string]bool, len(file.Templates))
	for i, tf := range file.Templates {
		tpl, err := tf.template()
		if err != nil {
			return nil, fmt.Errorf("%w: template %d: %v", ErrInvalidCatalog, i, err)
		}
		key := normalizeText(tpl.Title)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate title %q", ErrInvalidCatalog, tpl.Title)
		}
		seen[key] = true
		c.byCategory[tpl.Category] = append(c.byCategory[tpl.Category], tpl)
	}
	for _, cat := range categoryOrder {
		if len(c.byCategory[cat]) == 0 {
			return nil, fmt.Errorf("%w: category %s has no templates", ErrInvalidCatalog, cat)
		}
	}

	resetTitle := strings.TrimSpace(file.StressReset)
	if resetTitle == "" {
		resetTitle = StressResetTitle
	}
	found := false
	for _, cat := range categoryOrder {
		for _, tpl := range c.byCategory[cat] {
			if tpl.Title == resetTitle {
				c.stressReset = tpl
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: stress reset template %q not found", ErrInvalidCatalog, resetTitle)
	}
	return c, nil
}

func (tf templateFile) template() (Template, error) {
	title := strings.TrimSpace(tf.Title)
	if title == "" {
		return Template{}, errors.New("title is required")
	}
	cat := Category(strings.TrimSpace(tf.Category))
	if !cat.Valid() {
		return Template{}, fmt.Errorf("%q: unknown category %q", title, tf.Category)
	}
	if tf.DurationMinutes <= 0 {
		return Template{}, fmt.Errorf("%q: duration_minutes must be positive", title)
	}
	if tf.BaseIntensity < 0 || tf.BaseIntensity > 1 {
		return Template{}, fmt.Errorf("%q: base_intensity must be within [0,1]", title)
	}
	if len(tf.Instructions) == 0 {
		return Template{}, fmt.Errorf("%q: instructions are required", title)
	}
	for _, ins := range tf.Instructions {
		if strings.TrimSpace(ins.Action) == "" {
			return Template{}, fmt.Errorf("%q: step %d has no action", title, ins.Step)
		}
	}
	return Template{
		Title:            title,
		Category:         cat,
		FocusArea:        strings.TrimSpace(tf.FocusArea),
		Coach:            strings.TrimSpace(tf.Coach),
		DurationMinutes:  tf.DurationMinutes,
		BaseIntensity:    tf.BaseIntensity,
		Instructions:     append([]Instruction(nil), tf.Instructions...),
		ClinicalEvidence: append([]string(nil), tf.ClinicalEvidence...),
	}, nil
}

// Version identifies the catalog revision recorded alongside generated protocols.
func (c *Catalog) Version() string {
	return c.version
}

// StressReset returns a copy of the designated stress override template.
func (c *Catalog) StressReset() Template {
	return cloneTemplate(c.stressReset)
}

// Templates returns copies of the templates of a category in catalog order.
func (c *Catalog) Templates(cat Category) []Template {
	src := c.byCategory[cat]
	out := make([]Template, 0, len(src))
	for _, tpl := range src {
		out = append(out, cloneTemplate(tpl))
	}
	return out
}

// All returns every template grouped in category enumeration order.
func (c *Catalog) All() []Template {
	var out []Template
	for _, cat := range categoryOrder {
		out = append(out, c.Templates(cat)...)
	}
	return out
}

func cloneTemplate(t Template) Template {
	t.Instructions = append([]Instruction(nil), t.Instructions...)
	t.ClinicalEvidence = append([]string(nil), t.ClinicalEvidence...)
	return t
}
