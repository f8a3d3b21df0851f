// Package authors builds the canonical author index of an anthology from
// front-matter attributions and "authors.html#Name" link fragments.
package authors

import (
	"net/url"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/jcdickinson/anthocheck/internal/anthology"
)

// Author is one canonical author.
type Author struct {
	Slug      string
	Name      string   // normalized display name
	Variants  []string // spellings seen: front-matter names and raw fragments
	Documents []string // ids of documents attributing or citing the author
	Declared  bool     // named in front matter or on the authors page
	Cited     bool     // target of at least one authors page link
}

// Ambiguity is a pair of distinct slugs close enough to be the same author
// misspelled. Such pairs are reported, never merged.
type Ambiguity struct {
	A, B     string // slugs, A < B
	Distance int
}

// Registry maps author names to canonical slugs. It is built once per run and
// read-only afterwards.
type Registry struct {
	page        string
	authors     map[string]*Author
	sorted      []*Author
	ambiguities []Ambiguity
	declared    int
}

// NormalizeName trims a display name and collapses its internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Slug returns the canonical slug of a display name: the percent-encoded
// normalized name, as used in "authors.html#Manish%20Goregaokar".
func Slug(name string) string {
	return url.PathEscape(NormalizeName(name))
}

// DecodeFragment turns an authors page fragment into a normalized display
// name. Fragments that are not valid percent-encoding are an error.
func DecodeFragment(fragment string) (string, error) {
	name, err := url.PathUnescape(fragment)
	if err != nil {
		return "", err
	}
	return NormalizeName(name), nil
}

// Build indexes authors declared by docs and cited by their links. The
// document whose id matches authorsPage declares every heading and HTML
// anchor on it.
func Build(docs []*anthology.Document, authorsPage string) *Registry {
	r := &Registry{page: authorsPage, authors: make(map[string]*Author)}
	pageID := anthology.DocumentID(authorsPage)

	for _, d := range docs {
		for _, name := range d.Authors {
			r.add(name, name, d.ID, true, false)
		}
		if d.ID == pageID {
			for _, h := range d.Headings {
				if h.Level > 1 {
					r.add(h.Text, h.Text, "", true, false)
				}
			}
			for anchor := range d.Anchors {
				if name, err := DecodeFragment(anchor); err == nil && !isHeadingID(d, anchor) {
					r.add(name, anchor, "", true, false)
				}
			}
		}
	}

	for _, d := range docs {
		for _, l := range d.Links {
			if l.Dest.Kind != anthology.TargetAuthor {
				continue
			}
			name, err := DecodeFragment(l.Dest.Fragment)
			if err != nil || name == "" {
				continue
			}
			r.add(name, l.Dest.Fragment, d.ID, false, true)
		}
	}

	r.finish()
	return r
}

func isHeadingID(d *anthology.Document, anchor string) bool {
	for _, h := range d.Headings {
		if h.ID == anchor {
			return true
		}
	}
	return false
}

func (r *Registry) add(name, variant, docID string, declared, cited bool) {
	norm := NormalizeName(name)
	if norm == "" {
		return
	}
	slug := url.PathEscape(norm)
	a, ok := r.authors[slug]
	if !ok {
		a = &Author{Slug: slug, Name: norm}
		r.authors[slug] = a
	}
	a.Variants = appendUnique(a.Variants, variant)
	if docID != "" {
		a.Documents = appendUnique(a.Documents, docID)
	}
	a.Declared = a.Declared || declared
	a.Cited = a.Cited || cited
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

func (r *Registry) finish() {
	for _, a := range r.authors {
		sort.Strings(a.Variants)
		sort.Strings(a.Documents)
		if a.Declared {
			r.declared++
		}
		r.sorted = append(r.sorted, a)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Slug < r.sorted[j].Slug })

	for i, a := range r.sorted {
		for _, b := range r.sorted[i+1:] {
			// two declared authors are confirmed distinct people
			if a.Declared && b.Declared {
				continue
			}
			if d, ok := nearDuplicate(a.Name, b.Name); ok {
				r.ambiguities = append(r.ambiguities, Ambiguity{A: a.Slug, B: b.Slug, Distance: d})
			}
		}
	}
}

// nearDuplicate reports whether two normalized names differ by at most one
// edit per sixteen characters (and at least one).
func nearDuplicate(a, b string) (int, bool) {
	la, lb := len([]rune(a)), len([]rune(b))
	shorter := min(la, lb)
	limit := max(1, shorter/16)
	if abs(la-lb) > limit {
		return 0, false
	}
	d := levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
	if d == 0 {
		// differ only by case
		d = 1
	}
	return d, d <= limit
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Page is the authors page name links are checked against.
func (r *Registry) Page() string {
	return r.page
}

// Authors returns every author sorted by slug.
func (r *Registry) Authors() []*Author {
	return r.sorted
}

// Lookup finds an author by canonical slug.
func (r *Registry) Lookup(slug string) (*Author, bool) {
	a, ok := r.authors[slug]
	return a, ok
}

// Resolve maps an authors page fragment to its author. A fragment that does
// not decode is an error; an unknown name yields nil.
func (r *Registry) Resolve(fragment string) (*Author, error) {
	name, err := DecodeFragment(fragment)
	if err != nil {
		return nil, err
	}
	return r.authors[url.PathEscape(name)], nil
}

// HasDeclared reports whether any author is declared. Without declarations
// every cited name is accepted and only ambiguities are flagged.
func (r *Registry) HasDeclared() bool {
	return r.declared > 0
}

// Ambiguities returns near-duplicate slug pairs sorted by A then B.
func (r *Registry) Ambiguities() []Ambiguity {
	return r.ambiguities
}

// Closest returns the declared author nearest to name by edit distance, or
// nil when none is within three edits.
func (r *Registry) Closest(name string) *Author {
	var best *Author
	bestDist := 4
	for _, a := range r.sorted {
		if !a.Declared {
			continue
		}
		if d := levenshtein.ComputeDistance(strings.ToLower(a.Name), strings.ToLower(name)); d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}
