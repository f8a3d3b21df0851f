// Package manifest parses SUMMARY.md-style table-of-contents files into an
// ordered tree of sections and chapters.
package manifest

import (
	"errors"
	"fmt"
)

// Kind distinguishes manifest entries.
type Kind int

const (
	KindRoot Kind = iota
	KindSection
	KindChapter
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindSection:
		return "section"
	case KindChapter:
		return "chapter"
	}
	return "unknown"
}

// Entry is one node of a manifest. Children are indices into Tree.Entries.
type Entry struct {
	Kind     Kind
	Title    string
	Target   string // as written; empty for sections and drafts
	Level    int    // heading level for sections, nesting depth for chapters
	Line     int
	Children []int
}

// Draft reports whether e is a chapter without a target, written "[Title]()".
func (e *Entry) Draft() bool {
	return e.Kind == KindChapter && e.Target == ""
}

// Tree is a parsed manifest stored as an arena. Entries[0] is the root and
// entries appear in source order.
type Tree struct {
	Name    string // manifest file path, for reports
	Entries []Entry
}

func newTree(name string) *Tree {
	return &Tree{Name: name, Entries: []Entry{{Kind: KindRoot, Title: name}}}
}

// add appends e as the last child of parent and returns its index.
func (t *Tree) add(parent int, e Entry) int {
	idx := len(t.Entries)
	t.Entries = append(t.Entries, e)
	t.Entries[parent].Children = append(t.Entries[parent].Children, idx)
	return idx
}

// Check verifies the arena is a tree: every child index is in range, no entry
// has two parents and every entry is reachable from the root exactly once.
func (t *Tree) Check() error {
	if len(t.Entries) == 0 || t.Entries[0].Kind != KindRoot {
		return errors.New("manifest: missing root entry")
	}

	var errs []error
	parent := make([]int, len(t.Entries))
	for i := range parent {
		parent[i] = -1
	}
	for i, e := range t.Entries {
		for _, c := range e.Children {
			switch {
			case c < 0 || c >= len(t.Entries):
				errs = append(errs, fmt.Errorf("manifest: entry %d has dangling child %d", i, c))
			case c == 0:
				errs = append(errs, fmt.Errorf("manifest: entry %d lists the root as a child", i))
			case parent[c] != -1:
				errs = append(errs, fmt.Errorf("manifest: entry %d has parents %d and %d", c, parent[c], i))
			default:
				parent[c] = i
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// With single parents only, anything unreachable from the root sits on a cycle
	// or hangs off one.
	seen := make([]bool, len(t.Entries))
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen[i] = true
		stack = append(stack, t.Entries[i].Children...)
	}
	for i, ok := range seen {
		if !ok {
			errs = append(errs, fmt.Errorf("manifest: entry %d (%q) is not reachable from the root", i, t.Entries[i].Title))
		}
	}
	return errors.Join(errs...)
}

// Walk calls fn for every entry below the root in document order, with the
// entry's depth (1 for children of the root). Returning false from fn skips
// the entry's children.
func (t *Tree) Walk(fn func(idx int, e *Entry, depth int) bool) {
	var visit func(idx, depth int)
	visit = func(idx, depth int) {
		for _, c := range t.Entries[idx].Children {
			if fn(c, &t.Entries[c], depth) {
				visit(c, depth+1)
			}
		}
	}
	visit(0, 1)
}

// Chapters returns the chapter entries in document order.
func (t *Tree) Chapters() []*Entry {
	var chapters []*Entry
	t.Walk(func(_ int, e *Entry, _ int) bool {
		if e.Kind == KindChapter {
			chapters = append(chapters, e)
		}
		return true
	})
	return chapters
}
