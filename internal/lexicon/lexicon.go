package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed default.yaml
var defaultYAML []byte

type Category struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

type VerbGroup struct {
	Name  string   `yaml:"name"`
	Words []string `yaml:"words"`
}

type document struct {
	Categories   []Category  `yaml:"categories"`
	Verbs        []VerbGroup `yaml:"verbs"`
	Noise        []string    `yaml:"noise"`
	Units        []string    `yaml:"units"`
	MoneyFormats []string    `yaml:"money_formats"`
}

// Catalog is the read-only word inventory shared by the generator, the
// feature extractor and post-processing. Flattened lists keep the document
// order, duplicates included, since generation draws uniformly from them.
type Catalog struct {
	categories   []Category
	verbGroups   []VerbGroup
	items        []string
	verbs        []string
	noise        []string
	units        []string
	moneyFormats []string

	verbSet  map[string]struct{}
	unitSet  map[string]struct{}
	moneySet map[string]struct{}
	noiseSet map[string]struct{}
}

// Default returns the catalog compiled into the binary. The catalog is
// parsed once and shared.
func Default() *Catalog {
	return defaultCatalog()
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
	}
	return c
})

// Load reads a catalog from a YAML file with the same layout as default.yaml.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading lexicon file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing lexicon: %w", err)
	}

	c := &Catalog{
		categories:   doc.Categories,
		verbGroups:   doc.Verbs,
		noise:        normalize(doc.Noise),
		units:        normalize(doc.Units),
		moneyFormats: normalize(doc.MoneyFormats),
	}
	for _, cat := range doc.Categories {
		c.items = append(c.items, normalize(cat.Items)...)
	}
	for _, group := range doc.Verbs {
		c.verbs = append(c.verbs, normalize(group.Words)...)
	}

	for name, list := range map[string][]string{
		"items":         c.items,
		"verbs":         c.verbs,
		"noise":         c.noise,
		"units":         c.units,
		"money_formats": c.moneyFormats,
	} {
		if len(list) == 0 {
			return nil, fmt.Errorf("lexicon list %q is empty", name)
		}
	}

	c.verbSet = toSet(c.verbs)
	c.unitSet = toSet(c.units)
	c.moneySet = toSet(c.moneyFormats)
	c.noiseSet = toSet(c.noise)

	return c, nil
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func has(set map[string]struct{}, word string) bool {
	_, ok := set[strings.ToLower(word)]
	return ok
}

func (c *Catalog) Categories() []Category  { return c.categories }
func (c *Catalog) VerbGroups() []VerbGroup { return c.verbGroups }

func (c *Catalog) Items() []string        { return c.items }
func (c *Catalog) Verbs() []string        { return c.verbs }
func (c *Catalog) Noise() []string        { return c.noise }
func (c *Catalog) Units() []string        { return c.units }
func (c *Catalog) MoneyFormats() []string { return c.moneyFormats }

func (c *Catalog) IsVerb(word string) bool        { return has(c.verbSet, word) }
func (c *Catalog) IsUnit(word string) bool        { return has(c.unitSet, word) }
func (c *Catalog) IsMoneyFormat(word string) bool { return has(c.moneySet, word) }
func (c *Catalog) IsNoise(word string) bool       { return has(c.noiseSet, word) }

// CategoryOf returns the first category listing item, or "" if none does.
func (c *Catalog) CategoryOf(item string) string {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, cat := range c.categories {
		for _, it := range cat.Items {
			if strings.ToLower(it) == item {
				return cat.Name
			}
		}
	}
	return ""
}
