package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

// RenderMarkdown writes t back out in canonical form: "#" headings for
// sections, "- [Title](target)" list items indented two spaces per level for
// chapters. normalize, when non-nil, rewrites each non-draft target.
func (t *Tree) RenderMarkdown(w io.Writer, normalize func(target string) string) error {
	var b strings.Builder
	prevSection := false
	t.Walk(func(_ int, e *Entry, _ int) bool {
		switch e.Kind {
		case KindSection:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s %s\n", strings.Repeat("#", e.Level), e.Title)
			prevSection = true
		case KindChapter:
			if prevSection {
				b.WriteByte('\n')
				prevSection = false
			}
			target := e.Target
			if target != "" && normalize != nil {
				target = normalize(target)
			}
			fmt.Fprintf(&b, "%s- [%s](%s)\n", strings.Repeat("  ", e.Level-1), e.Title, target)
		}
		return true
	})
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderTree returns t as a gotree for terminal display.
func (t *Tree) RenderTree() gotree.Tree {
	root := gotree.New(t.Name)
	nodes := map[int]gotree.Tree{0: root}
	for i, e := range t.Entries {
		parent, ok := nodes[i]
		if !ok {
			continue
		}
		for _, c := range e.Children {
			nodes[c] = parent.Add(label(&t.Entries[c]))
		}
	}
	return root
}

func label(e *Entry) string {
	switch {
	case e.Kind == KindSection:
		return e.Title
	case e.Draft():
		return e.Title + " (draft)"
	}
	return fmt.Sprintf("%s -> %s", e.Title, e.Target)
}
