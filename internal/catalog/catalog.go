// Package catalog holds the localized text used by the analytics engine:
// category labels, metric names, validation messages and recommendation
// actions. Catalogs are embedded YAML files, one per locale.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFiles embed.FS

type Template struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Advice struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Actions     []string `yaml:"actions"`
}

type Catalog struct {
	Locale         string              `yaml:"locale"`
	Invalid        string              `yaml:"invalid"`
	Categories     map[string]string   `yaml:"categories"`
	Metrics        map[string]string   `yaml:"metrics"`
	Units          map[string]string   `yaml:"units"`
	OptimalRanges  map[string]string   `yaml:"optimal_ranges"`
	Status         map[string]string   `yaml:"status"`
	Validation     map[string]string   `yaml:"validation"`
	Impact         map[string]string   `yaml:"impact"`
	Recommendation Template            `yaml:"recommendation"`
	General        Advice              `yaml:"general"`
	Actions        map[string][]string `yaml:"actions"`

	tag language.Tag
}

var (
	requiredCategories = []string{"excellent", "good", "moderate", "poor", "very_poor"}
	requiredValidation = []string{"temperature", "humidity", "co2", "area", "occupancy"}
)

// Parse decodes a single locale file and checks that the keys the engine
// relies on are present.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if c.Locale == "" {
		return nil, fmt.Errorf("catalog has no locale")
	}
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: invalid locale: %w", c.Locale, err)
	}
	c.tag = tag

	for _, k := range requiredCategories {
		if c.Categories[k] == "" {
			return nil, fmt.Errorf("catalog %q: missing category label %q", c.Locale, k)
		}
	}
	for _, k := range requiredValidation {
		if c.Validation[k] == "" {
			return nil, fmt.Errorf("catalog %q: missing validation message %q", c.Locale, k)
		}
	}
	if len(c.General.Actions) == 0 {
		return nil, fmt.Errorf("catalog %q: general advice has no actions", c.Locale)
	}
	if c.Recommendation.Title == "" || c.Recommendation.Description == "" {
		return nil, fmt.Errorf("catalog %q: missing recommendation templates", c.Locale)
	}
	return &c, nil
}

func (c *Catalog) Tag() language.Tag { return c.tag }

// MetricName falls back to the raw key when the catalog has no entry.
func (c *Catalog) MetricName(metric string) string {
	if name, ok := c.Metrics[metric]; ok {
		return name
	}
	return metric
}

func (c *Catalog) CategoryLabel(level string) string {
	if label, ok := c.Categories[level]; ok {
		return label
	}
	return level
}

func (c *Catalog) StatusLabel(key string) string {
	if label, ok := c.Status[key]; ok {
		return label
	}
	return key
}

func (c *Catalog) ActionsFor(metric, condition string) []string {
	return c.Actions[metric+"."+condition]
}

func (c *Catalog) RecommendationTitle(metric string) string {
	return fmt.Sprintf(c.Recommendation.Title, c.MetricName(metric))
}

// RecommendationDescription lower-cases the metric name with the catalog's
// own casing rules so Turkish dotted and dotless i survive.
func (c *Catalog) RecommendationDescription(metric string) string {
	name := cases.Lower(c.tag).String(c.MetricName(metric))
	return fmt.Sprintf(c.Recommendation.Description, name)
}

// Registry resolves a catalog from client language preferences.
type Registry struct {
	catalogs map[string]*Catalog
	tags     []language.Tag
	locales  []string
	matcher  language.Matcher
}

// NewRegistry loads every embedded locale. defaultLocale is used when no
// preference matches.
func NewRegistry(defaultLocale string) (*Registry, error) {
	entries, err := fs.ReadDir(localeFiles, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	var loaded []*Catalog
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := localeFiles.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		c, err := Parse(data)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}
	return newRegistry(defaultLocale, loaded)
}

func newRegistry(defaultLocale string, loaded []*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[string]*Catalog, len(loaded))}
	for _, c := range loaded {
		r.catalogs[c.Locale] = c
	}
	def, ok := r.catalogs[defaultLocale]
	if !ok {
		return nil, fmt.Errorf("default locale %q has no catalog", defaultLocale)
	}

	// The matcher falls back to its first tag.
	r.tags = append(r.tags, def.tag)
	r.locales = append(r.locales, def.Locale)
	rest := make([]string, 0, len(loaded))
	for locale := range r.catalogs {
		if locale != defaultLocale {
			rest = append(rest, locale)
		}
	}
	sort.Strings(rest)
	for _, locale := range rest {
		r.tags = append(r.tags, r.catalogs[locale].tag)
		r.locales = append(r.locales, locale)
	}
	r.matcher = language.NewMatcher(r.tags)
	return r, nil
}

// Match accepts language tags or Accept-Language header values, most
// preferred first. Empty values are skipped.
func (r *Registry) Match(preferences ...string) *Catalog {
	var prefs []string
	for _, p := range preferences {
		if p = strings.TrimSpace(p); p != "" {
			prefs = append(prefs, p)
		}
	}
	_, idx := language.MatchStrings(r.matcher, prefs...)
	return r.catalogs[r.locales[idx]]
}

func (r *Registry) Get(locale string) (*Catalog, bool) {
	c, ok := r.catalogs[locale]
	return c, ok
}

func (r *Registry) Default() *Catalog {
	return r.catalogs[r.locales[0]]
}

// Locales lists the loaded locales, default first.
func (r *Registry) Locales() []string {
	out := make([]string, len(r.locales))
	copy(out, r.locales)
	return out
}
