package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/anthology"
)

// Options control the manifest grammar.
type Options struct {
	// RequireSections makes a chapter that appears before the first heading
	// an error. Flat manifests are legal otherwise.
	RequireSections bool
}

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})(?:\s+(.*?))?(?:\s+#+)?\s*$`)
	separatorRe = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
	markerRe    = regexp.MustCompile(`^(?:[-*+]|\d{1,9}[.)])\s+`)
)

type openChapter struct {
	indent int
	idx    int
}

type parser struct {
	name    string
	opts    Options
	tree    *Tree
	line    int
	section []int // open sections, innermost last
	chapter []openChapter
	comment bool
}

// Parse reads a manifest. Headings open sections nested by level; link lines
// become chapters of the innermost section, nested under the previous
// chapter with a shallower list indent. The first line that fits neither is
// reported as a *anthology.ParseError wrapping anthology.ErrMalformedManifest.
func Parse(name string, r io.Reader, opts Options) (*Tree, error) {
	p := &parser{name: name, opts: opts, tree: newTree(name)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &anthology.ParseError{Path: name, Err: fmt.Errorf("%w: %w", anthology.ErrUnreadableSource, err)}
	}
	if p.comment {
		return nil, p.errorf("unterminated HTML comment")
	}
	return p.tree, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &anthology.ParseError{
		Path: p.name,
		Line: p.line,
		Err:  fmt.Errorf("%w: %s", anthology.ErrMalformedManifest, fmt.Sprintf(format, args...)),
	}
}

func (p *parser) parseLine(raw string) error {
	if p.line == 1 {
		raw = strings.TrimPrefix(raw, "\ufeff")
	}
	text := strings.TrimSpace(raw)

	if p.comment {
		if _, after, ok := strings.Cut(text, "-->"); ok {
			p.comment = false
			if strings.TrimSpace(after) != "" {
				return p.errorf("unexpected text after comment: %q", after)
			}
		}
		return nil
	}
	if strings.HasPrefix(text, "<!--") {
		if !strings.Contains(text[4:], "-->") {
			p.comment = true
		}
		return nil
	}

	switch {
	case text == "":
		return nil
	case separatorRe.MatchString(text):
		return nil
	case strings.HasPrefix(text, "#"):
		return p.parseSection(text)
	}
	return p.parseChapter(raw)
}

func (p *parser) parseSection(text string) error {
	m := headingRe.FindStringSubmatch(text)
	if m == nil {
		return p.errorf("invalid heading %q", text)
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		return p.errorf("empty heading")
	}
	level := len(m[1])

	for len(p.section) > 0 && p.tree.Entries[p.section[len(p.section)-1]].Level >= level {
		p.section = p.section[:len(p.section)-1]
	}
	idx := p.tree.add(p.currentSection(), Entry{Kind: KindSection, Title: title, Level: level, Line: p.line})
	p.section = append(p.section, idx)
	p.chapter = p.chapter[:0]
	return nil
}

func (p *parser) currentSection() int {
	if len(p.section) == 0 {
		return 0
	}
	return p.section[len(p.section)-1]
}

func (p *parser) parseChapter(raw string) error {
	indent := indentWidth(raw)
	text := strings.TrimSpace(raw)
	if loc := markerRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}

	title, target, err := parseLink(text)
	if err != nil {
		return p.errorf("%s: %q", err, strings.TrimSpace(raw))
	}
	if p.opts.RequireSections && len(p.section) == 0 {
		return p.errorf("chapter %q outside any section", title)
	}

	for len(p.chapter) > 0 && p.chapter[len(p.chapter)-1].indent >= indent {
		p.chapter = p.chapter[:len(p.chapter)-1]
	}
	parent := p.currentSection()
	if len(p.chapter) > 0 {
		parent = p.chapter[len(p.chapter)-1].idx
	}
	idx := p.tree.add(parent, Entry{
		Kind:   KindChapter,
		Title:  title,
		Target: target,
		Level:  len(p.chapter) + 1,
		Line:   p.line,
	})
	p.chapter = append(p.chapter, openChapter{indent: indent, idx: idx})
	return nil
}

// parseLink accepts "[Title](target)", "[Title]: target" and "[Title] target".
// An empty "()" is a draft and yields an empty target.
func parseLink(text string) (title, target string, err error) {
	if !strings.HasPrefix(text, "[") {
		return "", "", errors.New("not a heading or chapter link")
	}
	end := closingBracket(text)
	if end < 0 {
		return "", "", errors.New("unclosed '['")
	}
	title = strings.TrimSpace(text[1:end])
	if title == "" {
		return "", "", errors.New("empty chapter title")
	}
	rest := text[end+1:]

	switch {
	case strings.HasPrefix(rest, "("):
		closing := closingParen(rest)
		if closing < 0 {
			return "", "", errors.New("unclosed '('")
		}
		if extra := strings.TrimSpace(rest[closing+1:]); extra != "" {
			return "", "", fmt.Errorf("chapter %q has trailing text %q after its link", title, extra)
		}
		target = cleanTarget(rest[1:closing])
		if target == "" {
			return title, "", nil
		}
	case strings.HasPrefix(rest, ":"):
		target = cleanTarget(rest[1:])
	case rest != "" && (rest[0] == ' ' || rest[0] == '\t'):
		target = cleanTarget(rest)
	}
	if target == "" {
		return "", "", fmt.Errorf("chapter %q has no target", title)
	}
	if strings.ContainsAny(target, " \t") {
		return "", "", fmt.Errorf("chapter %q has trailing text after its target", title)
	}
	return title, target, nil
}

// cleanTarget unwraps "<target>" and drops a quoted link title.
func cleanTarget(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		if end := strings.IndexByte(s, '>'); end > 0 {
			return s[1:end]
		}
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		if rest := strings.TrimSpace(s[i:]); len(rest) >= 2 && strings.ContainsRune(`"'(`, rune(rest[0])) {
			return s[:i]
		}
	}
	return s
}

// closingBracket returns the index of the ']' matching the '[' at text[0],
// honoring nesting and backslash escapes, or -1.
func closingBracket(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// indentWidth counts leading whitespace, a tab advancing to the next
// multiple of four.
func indentWidth(s string) int {
	w := 0
	for _, r := range s {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4 - w%4
		default:
			return w
		}
	}
	return w
}

// closingParen returns the index of the ')' matching the '(' at text[0],
// honoring nesting, backslash escapes and "<...>" destinations, or -1.
func closingParen(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '<':
			if depth == 1 {
				if end := strings.IndexByte(text[i:], '>'); end > 0 {
					i += end
				}
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
