package anthology

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// docExtensions are stripped from file names and link paths to form document
// ids. Longer suffixes come first.
var docExtensions = []string{".markdown", ".html", ".htm", ".txt", ".md"}

// schemeRe matches a URL scheme such as "https:" or "mailto:".
var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// DocumentID derives a document id from a slash-separated path:
// "part1/finding-closure-in-rust.md.zst" -> "part1/finding-closure-in-rust".
func DocumentID(p string) string {
	p = strings.TrimSuffix(p, ".zst")
	for _, ext := range docExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

// IsExternal reports whether target points outside the corpus.
func IsExternal(target string) bool {
	return strings.HasPrefix(target, "//") || schemeRe.MatchString(target)
}

// ParseTarget classifies a raw link destination. Relative paths resolve
// against dir, the directory of the document holding the link; a leading
// "/" is relative to the source root.
func ParseTarget(raw, dir, authorsPage string) Target {
	if raw == "" {
		return Target{Kind: TargetUnresolved}
	}
	if IsExternal(raw) {
		return Target{Kind: TargetExternal}
	}

	p, fragment, _ := strings.Cut(raw, "#")
	p, _, _ = strings.Cut(p, "?")
	if p == "" {
		return Target{Kind: TargetFragment, Fragment: fragment}
	}

	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if strings.HasPrefix(p, "/") {
		p = path.Clean(strings.TrimPrefix(p, "/"))
	} else {
		p = path.Clean(path.Join(dir, p))
	}

	slug := DocumentID(p)
	if fragment != "" && authorsPage != "" && path.Base(slug) == DocumentID(authorsPage) {
		return Target{Kind: TargetAuthor, Path: p, Slug: slug, Fragment: fragment}
	}
	return Target{Kind: TargetInternal, Path: p, Slug: slug, Fragment: fragment}
}

// DecodeFragment percent-decodes an anchor fragment, falling back to the raw
// text when it is not valid percent-encoding.
func DecodeFragment(fragment string) string {
	if decoded, err := url.PathUnescape(fragment); err == nil {
		return decoded
	}
	return fragment
}

func dirOf(file string) string {
	d := path.Dir(file)
	if d == "." {
		return ""
	}
	return d
}
