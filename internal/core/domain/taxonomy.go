package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Category is one axis of variation with its allowed values, e.g. lighting
type Category struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Taxonomy is the ordered set of parameter categories for a session.
// Its JSON form is an object (category -> values) whose key order is preserved.
type Taxonomy struct {
	Categories []Category
}

// NewTaxonomy builds a taxonomy from ordered categories, copying the input
func NewTaxonomy(categories ...Category) Taxonomy {
	t := Taxonomy{Categories: make([]Category, 0, len(categories))}
	for _, c := range categories {
		t.Categories = append(t.Categories, Category{
			Name:   c.Name,
			Values: append([]string(nil), c.Values...),
		})
	}
	return t
}

// Len returns the number of categories
func (t Taxonomy) Len() int {
	return len(t.Categories)
}

// Names returns category names in order
func (t Taxonomy) Names() []string {
	names := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Values returns the allowed values of a category
func (t Taxonomy) Values(category string) ([]string, bool) {
	for _, c := range t.Categories {
		if c.Name == category {
			return c.Values, true
		}
	}
	return nil, false
}

// Contains reports whether (category, value) is part of the taxonomy
func (t Taxonomy) Contains(category, value string) bool {
	values, ok := t.Values(category)
	if !ok {
		return false
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// PairCount returns the total number of (category, value) pairs
func (t Taxonomy) PairCount() int {
	n := 0
	for _, c := range t.Categories {
		n += len(c.Values)
	}
	return n
}

// Clone returns a deep copy
func (t Taxonomy) Clone() Taxonomy {
	return NewTaxonomy(t.Categories...)
}

// Validate checks that every category is named and has non-empty, unique values
func (t Taxonomy) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("taxonomy has no categories")
	}
	seenNames := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		if c.Name == "" {
			return fmt.Errorf("taxonomy has an unnamed category")
		}
		if seenNames[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seenNames[c.Name] = true

		if len(c.Values) == 0 {
			return fmt.Errorf("category %q has no values", c.Name)
		}
		seenValues := make(map[string]bool, len(c.Values))
		for _, v := range c.Values {
			if v == "" {
				return fmt.Errorf("category %q has an empty value", c.Name)
			}
			if seenValues[v] {
				return fmt.Errorf("category %q has duplicate value %q", c.Name, v)
			}
			seenValues[v] = true
		}
	}
	return nil
}

// MarshalJSON writes the taxonomy as an ordered JSON object
func (t Taxonomy) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		values := c.Values
		if values == nil {
			values = []string{}
		}
		val, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object of category -> string array
func (t *Taxonomy) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		t.Categories = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("taxonomy must be a JSON object")
	}

	categories := make([]Category, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected taxonomy key %v", keyTok)
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("category %q: %w", name, err)
		}
		categories = append(categories, Category{Name: name, Values: values})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	t.Categories = categories
	return nil
}
