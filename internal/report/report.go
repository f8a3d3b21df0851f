// Package report renders check results and maps them to a process exit code.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/jcdickinson/anthocheck/internal/validate"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitIssues    = 1
	ExitMalformed = 2
)

// OrphanPolicy decides whether orphaned documents fail a run.
type OrphanPolicy string

const (
	OrphansWarn OrphanPolicy = "warn"
	OrphansFail OrphanPolicy = "fail"
)

// ParseOrphanPolicy accepts "warn" or "fail", case-insensitively.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch p := OrphanPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case OrphansWarn, OrphansFail:
		return p, nil
	}
	return "", fmt.Errorf("invalid orphan policy %q (want %q or %q)", s, OrphansWarn, OrphansFail)
}

// Policy holds the knobs that affect the exit code.
type Policy struct {
	Orphans OrphanPolicy
}

// Blocking reports whether an issue of kind k fails the run under p.
func (p Policy) Blocking(k validate.Kind) bool {
	if k == validate.OrphanDocument {
		return p.Orphans == OrphansFail
	}
	return true
}

// Report is the outcome of one check run.
type Report struct {
	Documents   int
	Manifests   int
	ParseErrors []*anthology.ParseError
	Issues      []validate.Issue
}

// ExitCode is 2 when any input failed to parse, 1 when any blocking issue
// was found and 0 otherwise.
func ExitCode(r Report, p Policy) int {
	if len(r.ParseErrors) > 0 {
		return ExitMalformed
	}
	for _, i := range r.Issues {
		if p.Blocking(i.Kind) {
			return ExitIssues
		}
	}
	return ExitOK
}

// grouped returns the issues of r by kind in report order, keeping their
// relative order within a kind.
func grouped(r Report) []validate.Issue {
	out := make([]validate.Issue, 0, len(r.Issues))
	for _, k := range validate.Kinds {
		for _, i := range r.Issues {
			if i.Kind == k {
				out = append(out, i)
			}
		}
	}
	return out
}

// TextOptions tune WriteText.
type TextOptions struct {
	Policy Policy
	Color  bool // ANSI colors, for terminals
}

// WriteText writes one line per parse error and issue, then a summary:
//
//	MissingTarget: missing-chapter.html — src/SUMMARY.md:12: manifest entry ...
func WriteText(w io.Writer, r Report, opts TextOptions) error {
	var b strings.Builder
	writeParseErrors(&b, opts, r.ParseErrors)
	counts := make(map[validate.Kind]int)
	for _, i := range grouped(r) {
		counts[i.Kind]++
		writeLine(&b, opts, string(i.Kind), opts.Policy.Blocking(i.Kind), i.Entity(), i.File, i.Line, i.Message)
	}

	var parts []string
	for _, k := range validate.Kinds {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	detail := ""
	if len(parts) > 0 {
		detail = " (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintf(&b, "checked %s, %s: %s, %s%s\n",
		plural(r.Documents, "document"), plural(r.Manifests, "manifest"),
		plural(len(r.ParseErrors), "parse error"), plural(len(r.Issues), "issue"), detail)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteParseErrors writes the parse error lines of WriteText alone, for
// commands that stop short of validation.
func WriteParseErrors(w io.Writer, perrs []*anthology.ParseError) error {
	var b strings.Builder
	writeParseErrors(&b, TextOptions{}, perrs)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeParseErrors(b *strings.Builder, opts TextOptions, perrs []*anthology.ParseError) {
	for _, pe := range perrs {
		writeLine(b, opts, pe.Kind(), true, pe.Path, pe.Path, pe.Line, cause(pe))
	}
}

func writeLine(b *strings.Builder, opts TextOptions, kind string, blocking bool, entity, file string, line int, msg string) {
	if opts.Color {
		if blocking {
			kind = "\x1B[31m" + kind + "\x1B[0m"
		} else {
			kind = "\x1B[33m" + kind + "\x1B[0m"
		}
	}
	fmt.Fprintf(b, "%s: %s — ", kind, entity)
	switch {
	case file != "" && line > 0:
		fmt.Fprintf(b, "%s:%d: ", file, line)
	case file != "":
		fmt.Fprintf(b, "%s: ", file)
	}
	b.WriteString(msg)
	b.WriteByte('\n')
}

// cause strips the location ParseError.Error adds, which the line already
// carries.
func cause(pe *anthology.ParseError) string {
	if pe.Err == nil {
		return pe.Kind()
	}
	return pe.Err.Error()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

type jsonParseError struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

type jsonReport struct {
	Documents   int              `json:"documents"`
	Manifests   int              `json:"manifests"`
	ParseErrors []jsonParseError `json:"parse_errors"`
	Issues      []validate.Issue `json:"issues"`
	ExitCode    int              `json:"exit_code"`
}

// WriteJSON writes r as a single indented JSON object with the same ordering
// as WriteText.
func WriteJSON(w io.Writer, r Report, p Policy) error {
	out := jsonReport{
		Documents:   r.Documents,
		Manifests:   r.Manifests,
		ParseErrors: make([]jsonParseError, 0, len(r.ParseErrors)),
		Issues:      grouped(r),
		ExitCode:    ExitCode(r, p),
	}
	for _, pe := range r.ParseErrors {
		out.ParseErrors = append(out.ParseErrors, jsonParseError{
			Kind:    pe.Kind(),
			Path:    pe.Path,
			Line:    pe.Line,
			Message: cause(pe),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
