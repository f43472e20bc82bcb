package ingredient

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyName is returned for a pantry item without a name.
var ErrEmptyName = errors.New("name must not be empty")

// PantryItem is a staple the household is assumed to own.
type PantryItem struct {
	Name      string   `json:"name" yaml:"name"`
	Uncertain bool     `json:"uncertain" yaml:"uncertain"`
	Aliases   []string `json:"aliases" yaml:"aliases"`
}

// Class is the shopping classification of an ingredient.
type Class int

const (
	Buy Class = iota
	PantryUsed
	PantryUncertain
)

func (c Class) String() string {
	switch c {
	case PantryUsed:
		return "pantry_used"
	case PantryUncertain:
		return "pantry_uncertain"
	default:
		return "buy"
	}
}

// PantryEntry is what a normalized key resolves to.
type PantryEntry struct {
	Name      string
	Uncertain bool
}

// Matcher resolves normalized ingredient keys to pantry entries.
type Matcher struct {
	entries map[string]PantryEntry
}

// NewMatcher indexes the name and every alias of each item. On a key
// collision the first item wins.
func NewMatcher(items []PantryItem) *Matcher {
	m := &Matcher{entries: make(map[string]PantryEntry)}
	for _, item := range items {
		entry := PantryEntry{Name: item.Name, Uncertain: item.Uncertain}
		for _, cand := range append([]string{item.Name}, item.Aliases...) {
			key := Normalize(cand)
			if key == "" {
				continue
			}
			if _, ok := m.entries[key]; !ok {
				m.entries[key] = entry
			}
		}
	}
	return m
}

var quantityTokenRe = regexp.MustCompile(`^[0-9½¼¾⅓⅔.,/-]+[a-zäöü]*$`)

var quantityWords = map[string]bool{
	"ein": true, "eine": true, "einen": true, "einem": true, "einer": true,
	"zwei": true, "drei": true, "vier": true, "fünf": true, "sechs": true,
	"sieben": true, "acht": true, "neun": true, "zehn": true, "halbe": true,
	"g": true, "gr": true, "gramm": true, "kg": true, "ml": true, "cl": true,
	"l": true, "liter": true, "el": true, "tl": true, "stück": true, "stk": true,
	"prise": true, "prisen": true, "dose": true, "dosen": true, "bund": true,
	"pck": true, "packung": true,
}

// pantryModifiers may accompany a pantry word without changing what is bought.
var pantryModifiers = map[string]bool{
	"würfel": true, "zehe": true, "zehen": true, "gemahlen": true, "gemahlener": true,
	"getrocknet": true, "getrocknete": true, "frisch": true, "frische": true,
	"grob": true, "fein": true, "gehackt": true, "gerebelt": true,
}

// Lookup resolves a normalized key. The exact key is tried first, then the
// key without leading amounts and units. A phrase falls back to its words only
// when every word is a pantry key or a modifier, so "hähnchenbrust mit reis"
// stays a buy item.
func (m *Matcher) Lookup(key string) (PantryEntry, bool) {
	if key == "" {
		return PantryEntry{}, false
	}
	if e, ok := m.entries[key]; ok {
		return e, true
	}

	tokens := strings.Fields(key)
	i := 0
	for i < len(tokens) && (quantityWords[tokens[i]] || quantityTokenRe.MatchString(tokens[i])) {
		i++
	}
	rest := tokens[i:]
	if len(rest) == 0 {
		return PantryEntry{}, false
	}
	if i > 0 {
		if e, ok := m.entries[Normalize(strings.Join(rest, " "))]; ok {
			return e, true
		}
	}
	if len(rest) == 1 {
		return PantryEntry{}, false
	}
	var (
		found PantryEntry
		hit   bool
	)
	for _, tok := range rest {
		if e, ok := m.entries[stem(tok)]; ok {
			if !hit {
				found, hit = e, true
			}
			continue
		}
		if !pantryModifiers[tok] {
			return PantryEntry{}, false
		}
	}
	return found, hit
}

// Classify returns the bucket for a normalized key and the pantry entry when one matched.
func (m *Matcher) Classify(key string) (Class, PantryEntry) {
	e, ok := m.Lookup(key)
	switch {
	case !ok:
		return Buy, PantryEntry{}
	case e.Uncertain:
		return PantryUncertain, e
	default:
		return PantryUsed, e
	}
}

//go:embed default_pantry.yaml
var defaultPantryYAML []byte

// DefaultPantry returns the built-in pantry list.
func DefaultPantry() []PantryItem {
	var doc struct {
		Items []PantryItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(defaultPantryYAML, &doc); err != nil {
		panic(fmt.Sprintf("invalid embedded default pantry: %v", err))
	}
	for i := range doc.Items {
		if doc.Items[i].Aliases == nil {
			doc.Items[i].Aliases = []string{}
		}
	}
	return doc.Items
}

// CleanPantry trims names, drops blank aliases and removes alias duplicates
// while keeping their order. It fails on an item without a name.
func CleanPantry(items []PantryItem) ([]PantryItem, error) {
	out := make([]PantryItem, 0, len(items))
	for i, item := range items {
		name := CleanDisplay(item.Name)
		if name == "" {
			return nil, fmt.Errorf("pantry item %d: %w", i+1, ErrEmptyName)
		}
		seen := make(map[string]bool)
		aliases := []string{}
		for _, a := range item.Aliases {
			a = CleanDisplay(a)
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			aliases = append(aliases, a)
		}
		out = append(out, PantryItem{Name: name, Uncertain: item.Uncertain, Aliases: aliases})
	}
	return out, nil
}
