package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize coerces raw model output into a taxonomy.
//
// Accepted shapes per category: an array (scalars are stringified, nested
// objects contribute their values), an object (its values), or a scalar
// (a single value). Category names are folded to snake_case ASCII; values
// are trimmed and deduplicated case-insensitively. Categories that end up
// empty are dropped and reported in the returned warnings.
func Normalize(raw string) (domain.Taxonomy, []string, error) {
	body, err := extractObject(raw)
	if err != nil {
		return domain.Taxonomy{}, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return domain.Taxonomy{}, nil, apperrors.MalformedExternalOutput("taxonomy output is not valid JSON")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return domain.Taxonomy{}, nil, apperrors.MalformedExternalOutput("taxonomy output is not a JSON object")
	}

	var (
		categories []domain.Category
		index      = make(map[string]int)
		warnings   []string
	)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return domain.Taxonomy{}, nil, apperrors.MalformedExternalOutput("taxonomy output is not valid JSON")
		}
		rawName, _ := keyTok.(string)

		var collected []string
		if err := collectScalars(dec, &collected); err != nil {
			return domain.Taxonomy{}, nil, apperrors.MalformedExternalOutput(
				fmt.Sprintf("category %q could not be decoded", rawName))
		}

		name := NormalizeName(rawName)
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("dropped category with unusable name %q", rawName))
			continue
		}

		if i, ok := index[name]; ok {
			categories[i].Values = mergeValues(categories[i].Values, collected)
			warnings = append(warnings, fmt.Sprintf("merged duplicate category %q", name))
			continue
		}

		values := mergeValues(nil, collected)
		if len(values) == 0 {
			warnings = append(warnings, fmt.Sprintf("dropped empty category %q", name))
			continue
		}

		index[name] = len(categories)
		categories = append(categories, domain.Category{Name: name, Values: values})
	}

	if len(categories) == 0 {
		return domain.Taxonomy{}, warnings, apperrors.MalformedExternalOutput("taxonomy output contains no usable categories")
	}

	return domain.NewTaxonomy(categories...), warnings, nil
}

// extractObject strips markdown fences and returns the outermost JSON object
func extractObject(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, apperrors.MalformedExternalOutput("taxonomy output contains no JSON object")
	}
	return []byte(text[start : end+1]), nil
}

// collectScalars reads one JSON value and appends every scalar inside it
func collectScalars(dec *json.Decoder, out *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '[':
			for dec.More() {
				if err := collectScalars(dec, out); err != nil {
					return err
				}
			}
		case '{':
			for dec.More() {
				// key
				if _, err := dec.Token(); err != nil {
					return err
				}
				if err := collectScalars(dec, out); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		_, err := dec.Token()
		return err
	case string:
		*out = append(*out, v)
	case json.Number:
		*out = append(*out, v.String())
	case bool:
		*out = append(*out, strconv.FormatBool(v))
	}
	return nil
}

// mergeValues appends trimmed, non-empty values not already present (case-insensitive)
func mergeValues(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, v := range existing {
		seen[strings.ToLower(v)] = true
	}
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		existing = append(existing, v)
	}
	return existing
}

// NormalizeName folds a category name to snake_case ASCII, e.g. "Iluminación " -> "iluminacion"
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}
