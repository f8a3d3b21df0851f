package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// anthology lays out a clean anthology in a fresh working directory so the
// default source.dir and manifest.paths find it.
func anthology(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	writeFile(t, dir, "src/SUMMARY.md", `# Summary

- [Finding Closure in Rust](finding-closure-in-rust.md)
- [Authors](authors.md)
`)
	writeFile(t, dir, "src/finding-closure-in-rust.md", `---
title: Finding Closure in Rust
author: Huon Wilson
---
# Finding Closure in Rust

By [Huon Wilson](authors.html#Huon%20Wilson).
`)
	writeFile(t, dir, "src/authors.md", "# Authors\n\n## Huon Wilson\n")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheck_Clean(t *testing.T) {
	anthology(t)

	for _, args := range [][]string{nil, {"check"}} {
		code, out, errOut := runCLI(t, args...)
		if code != 0 {
			t.Fatalf("%v: exit code = %d\nstdout:\n%s\nstderr:\n%s", args, code, out, errOut)
		}
		if out != "checked 2 documents, 1 manifest: 0 parse errors, 0 issues\n" {
			t.Errorf("%v: stdout = %q", args, out)
		}
	}
}

func TestCheck_MissingChapter(t *testing.T) {
	dir := anthology(t)
	writeFile(t, dir, "src/SUMMARY.md", `# Summary

- [Finding Closure in Rust](finding-closure-in-rust.md)
- [Ghost Chapter]: missing-chapter.html
- [Authors](authors.md)
`)

	code, out, _ := runCLI(t, "check")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out, "MissingTarget: missing-chapter.html — ") || strings.Count(out, "\n") != 2 {
		t.Errorf("stdout:\n%s", out)
	}
}

func TestCheck_OrphansFlag(t *testing.T) {
	dir := anthology(t)
	writeFile(t, dir, "src/unlisted.md", "# Unlisted\n")

	if code, out, _ := runCLI(t, "check"); code != 0 || !strings.Contains(out, "OrphanDocument: unlisted") {
		t.Errorf("orphans warn: exit code = %d\n%s", code, out)
	}
	if code, _, _ := runCLI(t, "check", "--orphans", "fail"); code != 1 {
		t.Errorf("orphans fail: exit code = %d, want 1", code)
	}
}

func TestCheck_ConfigFileAndFlags(t *testing.T) {
	dir := anthology(t)
	if err := os.Rename(filepath.Join(dir, "src"), filepath.Join(dir, "essays")); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "anthocheck.toml", "[source]\ndir = \"essays\"\n[manifest]\npaths = [\"essays/SUMMARY.md\"]\n")

	if code, out, errOut := runCLI(t, "check"); code != 0 {
		t.Errorf("exit code = %d\n%s%s", code, out, errOut)
	}
	if code, _, errOut := runCLI(t, "check", "-s", "nowhere"); code != 2 || !strings.Contains(errOut, "nowhere") {
		t.Errorf("missing source dir: exit code = %d, stderr = %q", code, errOut)
	}
}

func TestCheck_JSON(t *testing.T) {
	anthology(t)

	code, out, _ := runCLI(t, "check", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var got struct {
		Documents int   `json:"documents"`
		Issues    []any `json:"issues"`
		ExitCode  int   `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Documents != 2 || len(got.Issues) != 0 || got.ExitCode != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestCheck_MalformedInput(t *testing.T) {
	dir := anthology(t)
	writeFile(t, dir, "src/broken.md", "---\ntitle: [unclosed\n---\n# Broken\n")

	code, out, _ := runCLI(t, "check")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.HasPrefix(out, "MalformedFrontMatter: broken.md — ") {
		t.Errorf("stdout:\n%s", out)
	}
}

func TestCheck_UsageErrors(t *testing.T) {
	anthology(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"check", "--format", "xml"}, "unknown format"},
		{[]string{"--config", "nope.toml"}, "nope.toml"},
		{[]string{"check", "--workers", "0"}, "workers"},
		{[]string{"check", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		code, _, errOut := runCLI(t, tt.args...)
		if code != 2 || !strings.Contains(errOut, tt.want) {
			t.Errorf("%v: exit code = %d, stderr = %q", tt.args, code, errOut)
		}
	}
}

func TestCheck_Debug(t *testing.T) {
	anthology(t)

	code, _, errOut := runCLI(t, "--debug", "check")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(errOut, "Config: source") || !strings.Contains(errOut, "level=DEBUG") {
		t.Errorf("expected debug logs on stderr, got:\n%s", errOut)
	}
}

func TestToc(t *testing.T) {
	anthology(t)

	code, out, _ := runCLI(t, "toc")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"src/SUMMARY.md", "Summary", "Finding Closure in Rust -> finding-closure-in-rust.md", "Authors -> authors.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}

	code, out, _ = runCLI(t, "toc", "--format", "markdown")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	want := "# Summary\n\n- [Finding Closure in Rust](finding-closure-in-rust.html)\n- [Authors](authors.html)\n"
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestToc_Malformed(t *testing.T) {
	dir := anthology(t)
	writeFile(t, dir, "src/SUMMARY.md", "# Summary\nNot a chapter line\n")

	code, _, errOut := runCLI(t, "toc")
	if code != 2 || !strings.HasPrefix(errOut, "MalformedManifest: src/SUMMARY.md — src/SUMMARY.md:2: malformed manifest: ") {
		t.Errorf("exit code = %d, stderr = %q", code, errOut)
	}

	// toc and check print the same line for the same parse error
	_, out, _ := runCLI(t, "check")
	first, _, _ := strings.Cut(out, "\n")
	if errOut != first+"\n" {
		t.Errorf("toc stderr %q differs from check report line %q", errOut, first)
	}
}

func TestAuthors(t *testing.T) {
	dir := anthology(t)
	writeFile(t, dir, "src/wrapper-types.md", "# Wrapper Types\n\nBy [Manish](authors.html#Manish%20Goregaokar) and [Manish](authors.html#Manish%20aGoregaokar).\n")

	code, out, _ := runCLI(t, "authors")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(out, "Huon%20Wilson ") {
		t.Errorf("stdout:\n%s", out)
	}
	if !strings.Contains(out, "ambiguous: Manish%20Goregaokar ~ Manish%20aGoregaokar (distance 1)\n") {
		t.Errorf("ambiguity not listed:\n%s", out)
	}
}

func TestHTMLTarget(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"finding-closure-in-rust.md": "finding-closure-in-rust.html",
		"closures/traits.md#fn":      "closures/traits.html#fn",
		"chapter.markdown":           "chapter.html",
		"already.html":               "already.html",
		"images/diagram.png":         "images/diagram.png",
		"#local":                     "#local",
		"https://doc.rust-lang.org/": "https://doc.rust-lang.org/",
		"mailto:someone@example.com": "mailto:someone@example.com",
	}
	for in, want := range tests {
		if got := htmlTarget(in); got != want {
			t.Errorf("htmlTarget(%q) = %q, want %q", in, got, want)
		}
	}
}
