package markdown

import (
	"iter"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Link is a single link occurrence in a Markdown body.
type Link struct {
	Label  string
	Target string // empty when a reference usage has no definition
	Line   int
	Column int // 1-based, in runes

	// Reference is set for reference-style usages and definitions.
	Reference bool
	// Definition is set for a "[label]: target" line nothing in the body used.
	Definition bool
}

// Definition is a reference-style link definition, "[label]: target".
type Definition struct {
	Label  string
	Target string
	Line   int
}

// NormalizeLabel folds a reference label for matching: case-insensitive,
// with internal whitespace collapsed.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// Links returns the links of body in document order, numbering lines from
// firstLine. Inline links and reference usages come first; definitions no
// usage consumed follow in line order. Link text may wrap across the lines of
// a paragraph. Fenced and indented code, code spans and images are skipped.
//
// A reference usage without a definition in body yields a Link with an empty
// Target so the caller can resolve it against definitions shared across
// documents. The sequence may be ranged over any number of times.
func Links(body string, firstLine int) iter.Seq[Link] {
	return func(yield func(Link) bool) {
		defs := Definitions(body, firstLine)
		used := make(map[string]bool, len(defs))

		for p := range paragraphs(body, firstLine) {
			if !scanParagraph(p, defs, used, yield) {
				return
			}
		}

		unused := make([]Definition, 0, len(defs))
		for key, def := range defs {
			if !used[key] {
				unused = append(unused, def)
			}
		}
		sort.Slice(unused, func(i, j int) bool { return unused[i].Line < unused[j].Line })
		for _, def := range unused {
			link := Link{
				Label:      def.Label,
				Target:     def.Target,
				Line:       def.Line,
				Column:     1,
				Reference:  true,
				Definition: true,
			}
			if !yield(link) {
				return
			}
		}
	}
}

// Definitions collects the reference definitions of body keyed by normalized
// label. The first definition of a label wins.
func Definitions(body string, firstLine int) map[string]Definition {
	defs := make(map[string]Definition)
	for n, line := range proseLines(body, firstLine) {
		label, target, ok := parseDefinition(line)
		if !ok {
			continue
		}
		key := NormalizeLabel(label)
		if _, dup := defs[key]; dup {
			continue
		}
		defs[key] = Definition{Label: label, Target: target, Line: n}
	}
	return defs
}

// sourceLine is one line of a body, flagged when it belongs to a code block.
type sourceLine struct {
	n    int
	text string
	code bool
}

// sourceLines yields every line of body. Lines inside fenced code blocks and
// indented code blocks are marked as code. An indented line opens a code
// block only after a blank line and outside a list, where indentation
// continues a list item instead.
func sourceLines(body string, firstLine int) iter.Seq[sourceLine] {
	return func(yield func(sourceLine) bool) {
		var (
			fence     string
			indented  bool
			inList    bool
			prevBlank = true
		)
		for i, line := range strings.Split(body, "\n") {
			line = strings.TrimSuffix(line, "\r")
			sl := sourceLine{n: firstLine + i, text: line}
			blank := strings.TrimSpace(line) == ""
			indent := indentWidth(line)
			marker, rest := fenceMarker(line)

			switch {
			case fence != "":
				if marker != "" && marker[0] == fence[0] && len(marker) >= len(fence) && strings.TrimSpace(rest) == "" {
					fence = ""
				}
				sl.code = true
			case indented && (blank || indent >= 4):
				sl.code = true
			case marker != "":
				fence = marker
				indented = false
				sl.code = true
			case !blank && indent >= 4 && prevBlank && !inList:
				indented = true
				sl.code = true
			default:
				indented = false
				if !blank && indent < 4 {
					switch {
					case listItemRe.MatchString(line):
						inList = true
					case isHeading(line), prevBlank && indent == 0:
						inList = false
					}
				}
			}

			prevBlank = blank
			if !yield(sl) {
				return
			}
		}
	}
}

// proseLines yields the lines of body outside code blocks.
func proseLines(body string, firstLine int) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for sl := range sourceLines(body, firstLine) {
			if sl.code {
				continue
			}
			if !yield(sl.n, sl.text) {
				return
			}
		}
	}
}

var listItemRe = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d{1,9}[.)])(?:[ \t]|$)`)

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && (n == len(trimmed) || trimmed[n] == ' ' || trimmed[n] == '\t')
}

// indentWidth counts leading columns, with tabs advancing to the next
// multiple of four.
func indentWidth(line string) int {
	w := 0
	for _, c := range []byte(line) {
		switch c {
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

// paragraph is a run of consecutive prose lines joined with "\n". starts
// holds the byte offset of each line within text.
type paragraph struct {
	text   string
	first  int
	starts []int
}

// position maps a byte offset in p.text to its source line and 1-based rune
// column.
func (p *paragraph) position(off int) (line, column int) {
	i := sort.Search(len(p.starts), func(i int) bool { return p.starts[i] > off }) - 1
	return p.first + i, utf8.RuneCountInString(p.text[p.starts[i]:off]) + 1
}

// paragraphs groups the prose lines of body. Blank lines, code, headings,
// list items, block quotes and reference definitions all break a paragraph;
// definition lines belong to none.
func paragraphs(body string, firstLine int) iter.Seq[*paragraph] {
	return func(yield func(*paragraph) bool) {
		var (
			b   strings.Builder
			cur *paragraph
		)
		flush := func() bool {
			if cur == nil {
				return true
			}
			p := cur
			p.text = b.String()
			cur = nil
			b.Reset()
			return yield(p)
		}

		for sl := range sourceLines(body, firstLine) {
			_, _, def := parseDefinition(sl.text)
			if sl.code || def || strings.TrimSpace(sl.text) == "" {
				if !flush() {
					return
				}
				continue
			}
			heading := isHeading(sl.text)
			if heading || listItemRe.MatchString(sl.text) || strings.HasPrefix(strings.TrimLeft(sl.text, " "), ">") {
				if !flush() {
					return
				}
			}
			if cur == nil {
				cur = &paragraph{first: sl.n}
			} else {
				b.WriteByte('\n')
			}
			cur.starts = append(cur.starts, b.Len())
			b.WriteString(sl.text)
			if heading && !flush() {
				return
			}
		}
		flush()
	}
}

// fenceMarker returns the run of ``` or ~~~ opening line, if any.
func fenceMarker(line string) (marker, rest string) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return "", ""
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return "", ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return "", ""
	}
	return trimmed[:n], trimmed[n:]
}

// parseDefinition recognizes "[label]: target" indented at most three spaces.
func parseDefinition(line string) (label, target string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || !strings.HasPrefix(trimmed, "[") {
		return "", "", false
	}
	end := closeBracket(trimmed, 0)
	if end < 0 || end+1 >= len(trimmed) || trimmed[end+1] != ':' {
		return "", "", false
	}
	label = trimmed[1:end]
	if strings.TrimSpace(label) == "" || strings.HasPrefix(label, "^") {
		return "", "", false
	}
	return label, destination(trimmed[end+2:]), true
}

// scanParagraph yields every link usage in p.
func scanParagraph(p *paragraph, defs map[string]Definition, used map[string]bool, yield func(Link) bool) bool {
	line := p.text
	for i := 0; i < len(line); {
		switch line[i] {
		case '\\':
			i += 2
			continue
		case '`':
			i = skipCodeSpan(line, i)
			continue
		case '[':
		default:
			i++
			continue
		}

		end := closeBracket(line, i)
		if end < 0 {
			// dangling bracket
			i++
			continue
		}
		label := unwrap(line[i+1 : end])
		image := i > 0 && line[i-1] == '!'
		footnote := strings.HasPrefix(label, "^")

		var (
			link Link
			emit bool
			next = end + 1
		)
		switch {
		case next < len(line) && line[next] == '(':
			closing := closeParen(line, next)
			if closing < 0 {
				i++
				continue
			}
			link = Link{Label: label, Target: destination(line[next+1 : closing])}
			emit = true
			next = closing + 1
		case next < len(line) && line[next] == '[':
			closing := closeBracket(line, next)
			if closing < 0 {
				i++
				continue
			}
			ref := unwrap(line[next+1 : closing])
			if strings.TrimSpace(ref) == "" {
				ref = label
			}
			link = referenceLink(ref, defs, used)
			emit = true
			next = closing + 1
		case !footnote:
			link = referenceLink(label, defs, used)
			emit = link.Target != "" || plausibleReference(line, i, label)
		}

		if !emit {
			i++
			continue
		}
		if !image && !footnote {
			link.Line, link.Column = p.position(i)
			if !yield(link) {
				return false
			}
		}
		i = next
	}
	return true
}

// unwrap joins a label that wraps across lines with single spaces.
func unwrap(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	parts := strings.Split(s, "\n")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return strings.Join(parts, " ")
}

func referenceLink(ref string, defs map[string]Definition, used map[string]bool) Link {
	key := NormalizeLabel(ref)
	link := Link{Label: ref, Reference: true}
	if def, ok := defs[key]; ok {
		used[key] = true
		link.Target = def.Target
	}
	return link
}

// plausibleReference reports whether an undefined "[label]" reads as a
// reference usage rather than an index expression or a task-list box.
func plausibleReference(line string, open int, label string) bool {
	if open > 0 {
		prev, _ := utf8.DecodeLastRuneInString(line[:open])
		if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '_' || prev == ']' || prev == ')' {
			return false
		}
	}
	switch strings.TrimSpace(label) {
	case "", "x", "X":
		return false
	}
	for _, r := range label {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// destination extracts the link destination from the text between the
// parentheses of an inline link or after the colon of a definition,
// dropping any title.
func destination(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		if end := strings.IndexByte(s, '>'); end >= 0 {
			return s[1:end]
		}
		return s[1:]
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// closeBracket returns the index of the ']' matching the '[' at open, or -1.
func closeBracket(s string, open int) int {
	depth := 0
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '`':
			i = skipCodeSpan(s, i) - 1
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// closeParen returns the index of the ')' matching the '(' at open, or -1.
func closeParen(s string, open int) int {
	depth := 0
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// skipCodeSpan returns the index just past the code span starting at i. An
// unmatched backtick run is literal text.
func skipCodeSpan(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	run := s[i : i+n]
	for j := i + n; j < len(s); {
		k := strings.Index(s[j:], run)
		if k < 0 {
			break
		}
		start := j + k
		end := start + n
		if end >= len(s) || s[end] != '`' {
			return end
		}
		for end < len(s) && s[end] == '`' {
			end++
		}
		j = end
	}
	return i + n
}
