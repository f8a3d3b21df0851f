package anthology

import "github.com/jcdickinson/anthocheck/internal/markdown"

// Document is one chapter source file after loading. Documents are never
// modified once the loader hands them out.
type Document struct {
	ID       string // unique within the corpus
	Path     string // relative to the source dir, forward slashes
	Title    string
	Authors  []string
	Tags     []string
	Draft    bool
	Extra    map[string]any
	Body     string
	BodyLine int // line of the first body line in the source file

	Links       []Link
	Headings    []markdown.Heading
	Anchors     map[string]bool
	Definitions map[string]markdown.Definition // keyed by normalized label
}

// HasAnchor reports whether fragment names a heading or HTML anchor in d.
func (d *Document) HasAnchor(fragment string) bool {
	if fragment == "" {
		return true
	}
	return d.Anchors[fragment]
}

// TargetKind classifies a link destination.
type TargetKind int

const (
	TargetInternal   TargetKind = iota // another document or file in the corpus
	TargetFragment                     // "#anchor" in the same document
	TargetAuthor                       // authors page fragment
	TargetExternal                     // has a scheme or is protocol-relative
	TargetUnresolved                   // empty destination
)

func (k TargetKind) String() string {
	switch k {
	case TargetInternal:
		return "internal"
	case TargetFragment:
		return "fragment"
	case TargetAuthor:
		return "author"
	case TargetExternal:
		return "external"
	case TargetUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// Link is a link occurrence attributed to its source document, with the
// destination already classified.
type Link struct {
	Source string // id of the document containing the link
	File   string // path of that document
	markdown.Link
	Dest Target
}

// Target is a classified link destination.
type Target struct {
	Kind     TargetKind
	Path     string // cleaned path relative to the source root (internal only)
	Slug     string // document id the path names (internal only)
	Fragment string // raw text after '#'
}

// NewLink classifies l as found in document id, loaded from file.
func NewLink(id, file string, l markdown.Link, authorsPage string) Link {
	return Link{
		Source: id,
		File:   file,
		Link:   l,
		Dest:   ParseTarget(l.Target, dirOf(file), authorsPage),
	}
}
