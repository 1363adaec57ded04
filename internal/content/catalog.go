// Package content holds the read-only practice catalog.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindSentence  Kind = "sentence"
	KindParagraph Kind = "paragraph"
)

// ParseKind trims and lowercases raw; an empty value means KindSentence.
func ParseKind(raw string) (Kind, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return KindSentence, true
	}
	switch Kind(v) {
	case KindSentence, KindParagraph:
		return Kind(v), true
	default:
		return "", false
	}
}

// Item is a reference text the learner reads aloud.
type Item struct {
	ID   int    `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// Catalog is immutable after Load.
type Catalog struct {
	Sentences  []Item `yaml:"sentences" json:"sentences"`
	Paragraphs []Item `yaml:"paragraphs" json:"paragraphs"`
}

//go:embed catalog.yaml
var defaultCatalog []byte

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Decode(strings.NewReader(string(defaultCatalog)))
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("content: open %q: %w", path, err)
	}
	defer f.Close()
	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("content: parse %q: %w", path, err)
	}
	return c, nil
}

// Decode parses and validates a YAML catalog.
func Decode(r io.Reader) (*Catalog, error) {
	c := &Catalog{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("content: decode yaml: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	var errs []error
	seen := make(map[int]Kind)
	check := func(kind Kind, items []Item) {
		for _, it := range items {
			if strings.TrimSpace(it.Text) == "" {
				errs = append(errs, fmt.Errorf("%s %d has empty text", kind, it.ID))
			}
			if prev, dup := seen[it.ID]; dup {
				errs = append(errs, fmt.Errorf("%s %d duplicates a %s id", kind, it.ID, prev))
			}
			seen[it.ID] = kind
		}
	}
	check(KindSentence, c.Sentences)
	check(KindParagraph, c.Paragraphs)
	return errors.Join(errs...)
}

// Find looks up an item by kind and id.
func (c *Catalog) Find(kind Kind, id int) (Item, bool) {
	items := c.Sentences
	if kind == KindParagraph {
		items = c.Paragraphs
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
