// Package frontmatter splits the optional metadata header from a Markdown
// source file. A "---" block is YAML, a "+++" block is TOML.
package frontmatter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/anthology"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Format int

const (
	None Format = iota
	YAML
	TOML
)

func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	case TOML:
		return "toml"
	}
	return "none"
}

// Metadata is the decoded front matter of a document.
type Metadata struct {
	Format  Format
	Title   string
	Authors []string
	Tags    []string
	Slug    string
	Draft   bool
	Extra   map[string]any
}

// Split separates a leading front-matter block from the body. bodyLine is the
// 1-based source line of the first body line. An opening marker with no
// closing marker is a *anthology.ParseError wrapping
// anthology.ErrMalformedFrontMatter; its Path is left for the caller.
func Split(src string) (block string, format Format, body string, bodyLine int, err error) {
	src = strings.TrimPrefix(src, "\ufeff")
	lines := strings.SplitAfter(src, "\n")
	if len(lines) == 0 {
		return "", None, src, 1, nil
	}

	var closers []string
	switch strings.TrimRight(lines[0], " \t\r\n") {
	case "---":
		format, closers = YAML, []string{"---", "..."}
	case "+++":
		format, closers = TOML, []string{"+++"}
	default:
		return "", None, src, 1, nil
	}

	for i := 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], " \t\r\n")
		for _, c := range closers {
			if trimmed == c {
				block = strings.Join(lines[1:i], "")
				body = strings.Join(lines[i+1:], "")
				return block, format, body, i + 2, nil
			}
		}
	}
	return "", format, "", 0, &anthology.ParseError{
		Line: 1,
		Err:  fmt.Errorf("%w: opening %q is never closed", anthology.ErrMalformedFrontMatter, closers[0]),
	}
}

// Parse splits src and decodes its front matter. Documents without front
// matter get an empty Metadata.
func Parse(src string) (*Metadata, string, int, error) {
	block, format, body, bodyLine, err := Split(src)
	if err != nil {
		return nil, "", 0, err
	}

	meta := &Metadata{Format: format}
	if format == None || strings.TrimSpace(block) == "" {
		return meta, body, bodyLine, nil
	}

	var raw map[string]any
	switch format {
	case YAML:
		if yerr := yaml.Unmarshal([]byte(block), &raw); yerr != nil {
			raw, err = parseKeyValues(block)
			if err != nil {
				return nil, "", 0, err
			}
		}
	case TOML:
		if terr := toml.Unmarshal([]byte(block), &raw); terr != nil {
			line := 1
			var derr *toml.DecodeError
			if errors.As(terr, &derr) {
				row, _ := derr.Position()
				line += row
			}
			return nil, "", 0, &anthology.ParseError{
				Line: line,
				Err:  fmt.Errorf("%w: %v", anthology.ErrMalformedFrontMatter, terr),
			}
		}
	}

	meta.fill(raw)
	return meta, body, bodyLine, nil
}

// parseKeyValues reads a block as plain "key: value" lines. YAML rejects
// unquoted titles like "Rust: a retrospective", which Jekyll-era files use
// freely.
func parseKeyValues(block string) (map[string]any, error) {
	raw := make(map[string]any)
	for i, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, &anthology.ParseError{
				// block starts on source line 2
				Line: i + 2,
				Err:  fmt.Errorf("%w: expected key: value, got %q", anthology.ErrMalformedFrontMatter, line),
			}
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		raw[strings.TrimSpace(key)] = value
	}
	return raw, nil
}

func (m *Metadata) fill(raw map[string]any) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		switch strings.ToLower(k) {
		case "title":
			m.Title = strings.TrimSpace(fmt.Sprint(v))
		case "author", "authors":
			m.Authors = append(m.Authors, stringList(v, false)...)
		case "tags", "tag":
			m.Tags = append(m.Tags, stringList(v, true)...)
		case "slug":
			m.Slug = strings.Trim(strings.TrimSpace(fmt.Sprint(v)), "/")
		case "draft":
			m.Draft = truthy(v)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
}

// stringList coerces a scalar or list value to strings. Scalars are split on
// commas when splitScalar is set.
func stringList(v any, splitScalar bool) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch val := v.(type) {
	case nil:
	case []any:
		for _, item := range val {
			add(fmt.Sprint(item))
		}
	case []string:
		for _, item := range val {
			add(item)
		}
	case string:
		if !splitScalar {
			add(val)
			break
		}
		for _, part := range strings.Split(val, ",") {
			add(part)
		}
	default:
		add(fmt.Sprint(val))
	}
	return out
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "on", "1":
			return true
		}
	}
	return false
}
