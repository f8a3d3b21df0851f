package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// Heading is a section heading with the anchor a book renderer gives it.
type Heading struct {
	Level int
	Text  string
	ID    string
}

// Headings parses body and returns its headings in order. IDs come from an
// explicit "{#id}" or are derived from the text with AnchorID; repeated IDs
// get "-1", "-2" suffixes.
func Headings(body string) []Heading {
	doc := gm.Parse([]byte(body), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.HeadingIDs,
	))

	seen := make(map[string]int)
	var headings []Heading
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		h, ok := node.(*ast.Heading)
		if !ok {
			return ast.GoToNext
		}
		text := extractNodeText(h)
		id := h.HeadingID
		if id == "" {
			id = AnchorID(text)
		}
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n)
		} else {
			seen[id] = 1
		}
		headings = append(headings, Heading{Level: h.Level, Text: text, ID: id})
		return ast.SkipChildren
	})
	return headings
}

// AnchorID derives a heading anchor the way mdBook does: lowercase, letters,
// digits, '-' and '_' kept, whitespace turned into '-', everything else
// dropped.
func AnchorID(text string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}

// htmlAnchorRe matches id and name attributes of inline HTML elements.
var htmlAnchorRe = regexp.MustCompile(`(?i)<[a-z][a-z0-9]*\s[^>]*?\b(?:id|name)\s*=\s*["']([^"']+)["']`)

// HTMLAnchors returns the values of id/name attributes of inline HTML in
// body, outside code blocks.
func HTMLAnchors(body string) []string {
	var anchors []string
	for _, line := range proseLines(body, 1) {
		for _, m := range htmlAnchorRe.FindAllStringSubmatch(line, -1) {
			anchors = append(anchors, m[1])
		}
	}
	return anchors
}

// extractNodeText recursively extracts text content from an AST node.
func extractNodeText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil && leaf.Literal != nil {
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}
