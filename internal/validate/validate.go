// Package validate cross-checks a loaded anthology: manifests against
// documents, links against documents and anchors, author citations against
// the author registry.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/jcdickinson/anthocheck/internal/authors"
	"github.com/jcdickinson/anthocheck/internal/manifest"
	"github.com/jcdickinson/anthocheck/internal/markdown"
)

// Kind is the class of a validation issue.
type Kind string

const (
	MissingTarget  Kind = "MissingTarget"
	OrphanDocument Kind = "OrphanDocument"
	DuplicateSlug  Kind = "DuplicateSlug"
	UnknownAuthor  Kind = "UnknownAuthor"
	BrokenAnchor   Kind = "BrokenAnchor"
)

// Kinds lists every issue kind in report order.
var Kinds = []Kind{MissingTarget, OrphanDocument, DuplicateSlug, UnknownAuthor, BrokenAnchor}

// Issue is a single consistency violation.
type Issue struct {
	Kind     Kind     `json:"kind"`
	Entities []string `json:"entities"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Entity joins the offending entity ids for display.
func (i Issue) Entity() string {
	return strings.Join(i.Entities, ", ")
}

// Input is everything Validate looks at. Nothing in it is modified.
type Input struct {
	Documents  []*anthology.Document
	Duplicates map[string][]string // document id -> every path claiming it
	Assets     map[string]bool     // non-document files, by path
	Manifests  []*manifest.Tree
	Registry   *authors.Registry
	// AuthorsPage is the page author links point at, "authors.html".
	AuthorsPage string
	// SharedDefinitions are ids of footer documents whose reference
	// definitions every document may use.
	SharedDefinitions []string
}

type validator struct {
	in     Input
	docs   []*anthology.Document
	byID   map[string]*anthology.Document
	shared map[string]bool
	defs   map[string]markdown.Definition
	issues []Issue
}

type listing struct {
	tree  *manifest.Tree
	entry *manifest.Entry
}

func (l listing) String() string {
	return fmt.Sprintf("%s:%d [%s]", l.tree.Name, l.entry.Line, l.entry.Title)
}

// Validate runs every check and returns the issues found, grouped by kind in
// the order of Kinds and in check order within a kind. For fixed input the
// result is identical on every call.
func Validate(in Input) []Issue {
	v := &validator{
		in:     in,
		docs:   append([]*anthology.Document(nil), in.Documents...),
		byID:   make(map[string]*anthology.Document, len(in.Documents)),
		shared: make(map[string]bool, len(in.SharedDefinitions)),
		defs:   make(map[string]markdown.Definition),
	}
	sort.Slice(v.docs, func(i, j int) bool { return v.docs[i].ID < v.docs[j].ID })
	for _, d := range v.docs {
		v.byID[d.ID] = d
	}
	for _, id := range in.SharedDefinitions {
		v.shared[id] = true
	}
	// shared footers are consulted in id order; the first definition wins
	for _, d := range v.docs {
		if !v.shared[d.ID] {
			continue
		}
		for label, def := range d.Definitions {
			if _, ok := v.defs[label]; !ok {
				v.defs[label] = def
			}
		}
	}

	listed := v.checkManifests()
	v.checkOrphans(listed)
	v.checkLinks()
	v.checkAuthors()
	v.checkDuplicates(listed)

	sort.SliceStable(v.issues, func(i, j int) bool {
		return rank(v.issues[i].Kind) < rank(v.issues[j].Kind)
	})
	return v.issues
}

func rank(k Kind) int {
	for i, have := range Kinds {
		if have == k {
			return i
		}
	}
	return len(Kinds)
}

func (v *validator) add(kind Kind, file string, line int, entities []string, format string, args ...any) {
	v.issues = append(v.issues, Issue{
		Kind:     kind,
		Entities: entities,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
	})
}

// checkManifests resolves every chapter entry and returns the entries
// listing each document id.
func (v *validator) checkManifests() map[string][]listing {
	listed := make(map[string][]listing)
	for _, tree := range v.in.Manifests {
		for _, e := range tree.Chapters() {
			if e.Draft() {
				continue
			}
			t := anthology.ParseTarget(e.Target, "", v.in.AuthorsPage)
			switch t.Kind {
			case anthology.TargetExternal:
				continue
			case anthology.TargetFragment, anthology.TargetUnresolved:
				v.add(MissingTarget, tree.Name, e.Line, []string{e.Target},
					"manifest entry %q does not name a document", e.Title)
				continue
			}

			d, ok := v.byID[t.Slug]
			if !ok {
				if !v.in.Assets[t.Path] {
					v.add(MissingTarget, tree.Name, e.Line, []string{e.Target},
						"manifest entry %q points at %s, which is not in the corpus", e.Title, t.Slug)
				}
				continue
			}
			listed[d.ID] = append(listed[d.ID], listing{tree: tree, entry: e})
			if t.Kind == anthology.TargetInternal && !hasAnchor(d, t.Fragment) {
				v.add(BrokenAnchor, tree.Name, e.Line, []string{e.Target},
					"manifest entry %q: %s has no anchor #%s", e.Title, d.ID, t.Fragment)
			}
		}
	}
	return listed
}

func (v *validator) checkOrphans(listed map[string][]listing) {
	// without any manifest every document would be an orphan
	if len(v.in.Manifests) == 0 {
		return
	}
	pageID := anthology.DocumentID(v.in.AuthorsPage)
	for _, d := range v.docs {
		if len(listed[d.ID]) > 0 || d.ID == pageID || v.shared[d.ID] || d.Draft {
			continue
		}
		v.add(OrphanDocument, d.Path, 0, []string{d.ID}, "%q is not listed in any manifest", d.Title)
	}
}

func (v *validator) checkLinks() {
	for _, d := range v.docs {
		for _, l := range d.Links {
			v.checkLink(d, l)
		}
	}
}

func (v *validator) checkLink(d *anthology.Document, l anthology.Link) {
	switch l.Dest.Kind {
	case anthology.TargetExternal, anthology.TargetAuthor:
		return

	case anthology.TargetFragment:
		if !hasAnchor(d, l.Dest.Fragment) {
			v.add(BrokenAnchor, d.Path, l.Line, []string{l.Target},
				"link [%s] in %s: no anchor #%s in this document", l.Label, d.ID, l.Dest.Fragment)
		}

	case anthology.TargetUnresolved:
		if !l.Reference {
			v.add(BrokenAnchor, d.Path, l.Line, []string{"[" + l.Label + "]"},
				"link [%s] in %s has an empty target", l.Label, d.ID)
			return
		}
		def, ok := v.defs[markdown.NormalizeLabel(l.Label)]
		if !ok || def.Target == "" {
			v.add(BrokenAnchor, d.Path, l.Line, []string{"[" + l.Label + "]"},
				"reference [%s] in %s has no definition in the document or any shared footer", l.Label, d.ID)
			return
		}
		resolved := l.Link
		resolved.Target = def.Target
		v.checkLink(d, anthology.NewLink(d.ID, d.Path, resolved, v.in.AuthorsPage))

	case anthology.TargetInternal:
		target, ok := v.byID[l.Dest.Slug]
		if !ok {
			if !v.in.Assets[l.Dest.Path] {
				v.add(MissingTarget, d.Path, l.Line, []string{l.Target},
					"link [%s] in %s points at %s, which is not in the corpus", l.Label, d.ID, l.Dest.Slug)
			}
			return
		}
		if !hasAnchor(target, l.Dest.Fragment) {
			v.add(BrokenAnchor, d.Path, l.Line, []string{l.Target},
				"link [%s] in %s: %s has no anchor #%s", l.Label, d.ID, target.ID, l.Dest.Fragment)
		}
	}
}

func hasAnchor(d *anthology.Document, fragment string) bool {
	return d.HasAnchor(fragment) || d.HasAnchor(anthology.DecodeFragment(fragment))
}

type citation struct {
	file string
	line int
}

func (v *validator) checkAuthors() {
	reg := v.in.Registry
	if reg == nil {
		return
	}
	first := make(map[string]citation)

	for _, d := range v.docs {
		for _, l := range d.Links {
			t := l.Dest
			if l.Dest.Kind == anthology.TargetUnresolved && l.Reference {
				if def, ok := v.defs[markdown.NormalizeLabel(l.Label)]; ok {
					t = anthology.ParseTarget(def.Target, "", v.in.AuthorsPage)
				}
			}
			if t.Kind != anthology.TargetAuthor {
				continue
			}

			name, err := authors.DecodeFragment(t.Fragment)
			if err != nil || name == "" {
				v.add(UnknownAuthor, d.Path, l.Line, []string{"#" + t.Fragment},
					"link [%s] in %s: %q is not a valid author name", l.Label, d.ID, t.Fragment)
				continue
			}
			slug := authors.Slug(name)
			if _, ok := first[slug]; !ok {
				first[slug] = citation{d.Path, l.Line}
			}
			if !reg.HasDeclared() {
				continue
			}
			if a, ok := reg.Lookup(slug); ok && a.Declared {
				continue
			}
			msg := fmt.Sprintf("link [%s] in %s cites %q, who is not declared", l.Label, d.ID, name)
			if c := reg.Closest(name); c != nil {
				msg += fmt.Sprintf(" (did you mean %q?)", c.Name)
			}
			v.add(UnknownAuthor, d.Path, l.Line, []string{slug}, "%s", msg)
		}
	}

	for _, amb := range reg.Ambiguities() {
		at, ok := first[amb.B]
		if !ok {
			at = first[amb.A]
		}
		if at.file == "" {
			at.file = v.attributedPath(amb.B, amb.A)
		}
		v.add(UnknownAuthor, at.file, at.line, []string{amb.A, amb.B},
			"%s and %s differ by %d edit(s) and may be the same author misspelled", amb.A, amb.B, amb.Distance)
	}
}

// attributedPath finds a document attributed to one of slugs, for issues
// about authors that are never linked.
func (v *validator) attributedPath(slugs ...string) string {
	for _, slug := range slugs {
		a, ok := v.in.Registry.Lookup(slug)
		if !ok {
			continue
		}
		for _, id := range a.Documents {
			if d, ok := v.byID[id]; ok {
				return d.Path
			}
		}
	}
	return ""
}

func (v *validator) checkDuplicates(listed map[string][]listing) {
	ids := make([]string, 0, len(listed))
	for id, entries := range listed {
		if len(entries) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		entries := listed[id]
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.String()
		}
		last := entries[len(entries)-1]
		v.add(DuplicateSlug, last.tree.Name, last.entry.Line, []string{id},
			"listed by %d manifest entries: %s", len(entries), strings.Join(names, "; "))
	}

	ids = ids[:0]
	for id, paths := range v.in.Duplicates {
		if len(paths) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		paths := v.in.Duplicates[id]
		v.add(DuplicateSlug, paths[1], 0, []string{id},
			"document id claimed by %d files: %s (%s wins)", len(paths), strings.Join(paths, ", "), paths[0])
	}
}
