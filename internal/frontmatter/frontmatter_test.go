package frontmatter

import (
	"errors"
	"slices"
	"testing"

	"github.com/jcdickinson/anthocheck/internal/anthology"
)

func TestSplit_NoFrontMatter(t *testing.T) {
	t.Parallel()
	src := "# Title\n\nBody.\n"
	block, format, body, line, err := Split(src)
	if err != nil {
		t.Fatal(err)
	}
	if block != "" || format != None || body != src || line != 1 {
		t.Errorf("got block=%q format=%v body=%q line=%d", block, format, body, line)
	}
}

func TestSplit_YAML(t *testing.T) {
	t.Parallel()
	src := "---\ntitle: Hello\n---\n# Hello\n"
	block, format, body, line, err := Split(src)
	if err != nil {
		t.Fatal(err)
	}
	if block != "title: Hello\n" {
		t.Errorf("block = %q", block)
	}
	if format != YAML {
		t.Errorf("format = %v", format)
	}
	if body != "# Hello\n" {
		t.Errorf("body = %q", body)
	}
	if line != 4 {
		t.Errorf("bodyLine = %d, want 4", line)
	}
}

func TestSplit_YAMLDocumentEnd(t *testing.T) {
	t.Parallel()
	_, format, body, line, err := Split("---\r\ntitle: x\r\n...\r\nbody")
	if err != nil {
		t.Fatal(err)
	}
	if format != YAML || body != "body" || line != 4 {
		t.Errorf("format=%v body=%q line=%d", format, body, line)
	}
}

func TestSplit_Unclosed(t *testing.T) {
	t.Parallel()
	_, _, _, _, err := Split("---\ntitle: never closed\n\n# Body\n")
	if !errors.Is(err, anthology.ErrMalformedFrontMatter) {
		t.Fatalf("expected ErrMalformedFrontMatter, got %v", err)
	}
	var pe *anthology.ParseError
	if !errors.As(err, &pe) || pe.Line != 1 {
		t.Errorf("expected ParseError at line 1, got %#v", err)
	}
}

func TestParse_YAML(t *testing.T) {
	t.Parallel()
	src := `---
title: Finding Closure in Rust
author: Huon Wilson
tags: [closures, traits]
draft: false
date: 2015-05-08
---
Body text.
`
	meta, body, line, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "Finding Closure in Rust" {
		t.Errorf("Title = %q", meta.Title)
	}
	if !slices.Equal(meta.Authors, []string{"Huon Wilson"}) {
		t.Errorf("Authors = %q", meta.Authors)
	}
	if !slices.Equal(meta.Tags, []string{"closures", "traits"}) {
		t.Errorf("Tags = %q", meta.Tags)
	}
	if meta.Draft {
		t.Error("Draft should be false")
	}
	if _, ok := meta.Extra["date"]; !ok {
		t.Error("unknown keys should land in Extra")
	}
	if body != "Body text.\n" || line != 8 {
		t.Errorf("body=%q line=%d", body, line)
	}
}

func TestParse_AuthorList(t *testing.T) {
	t.Parallel()
	meta, _, _, err := Parse("---\nauthors:\n  - Aaron Turon\n  - Niko Matsakis\nslug: /ownership/\n---\n")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(meta.Authors, []string{"Aaron Turon", "Niko Matsakis"}) {
		t.Errorf("Authors = %q", meta.Authors)
	}
	if meta.Slug != "ownership" {
		t.Errorf("Slug = %q", meta.Slug)
	}
}

func TestParse_KeyValueFallback(t *testing.T) {
	t.Parallel()
	meta, _, _, err := Parse("---\ntitle: Rust: a retrospective\nauthor: \"Brian Anderson\"\ntags: retro, history\n---\n")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Title != "Rust: a retrospective" {
		t.Errorf("Title = %q", meta.Title)
	}
	if !slices.Equal(meta.Authors, []string{"Brian Anderson"}) {
		t.Errorf("Authors = %q", meta.Authors)
	}
	if !slices.Equal(meta.Tags, []string{"retro", "history"}) {
		t.Errorf("Tags = %q", meta.Tags)
	}
}

func TestParse_KeyValueFallbackError(t *testing.T) {
	t.Parallel()
	_, _, _, err := Parse("---\ntitle: a: b\nnot a pair\n---\n")
	var pe *anthology.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
	if !errors.Is(err, anthology.ErrMalformedFrontMatter) {
		t.Error("expected ErrMalformedFrontMatter")
	}
}

func TestParse_TOML(t *testing.T) {
	t.Parallel()
	meta, body, line, err := Parse("+++\ntitle = \"Ownership\"\nauthors = [\"Aaron Turon\"]\ndraft = true\n+++\ntext\n")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Format != TOML || meta.Title != "Ownership" || !meta.Draft {
		t.Errorf("meta = %+v", meta)
	}
	if !slices.Equal(meta.Authors, []string{"Aaron Turon"}) {
		t.Errorf("Authors = %q", meta.Authors)
	}
	if body != "text\n" || line != 6 {
		t.Errorf("body=%q line=%d", body, line)
	}
}

func TestParse_TOMLError(t *testing.T) {
	t.Parallel()
	_, _, _, err := Parse("+++\ntitle = \"ok\"\ntitle = = broken\n+++\n")
	if !errors.Is(err, anthology.ErrMalformedFrontMatter) {
		t.Fatalf("expected ErrMalformedFrontMatter, got %v", err)
	}
}

func TestParse_EmptyBlock(t *testing.T) {
	t.Parallel()
	meta, body, line, err := Parse("---\n---\nbody\n")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Format != YAML || meta.Title != "" || body != "body\n" || line != 3 {
		t.Errorf("meta=%+v body=%q line=%d", meta, body, line)
	}
}
