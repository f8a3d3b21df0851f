package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/klauspost/compress/zstd"
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

func writeZstd(t *testing.T, dir, rel, content string) {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	writeFile(t, dir, rel, string(enc.EncodeAll([]byte(content), nil)))
}

func defaultOptions(dir string) Options {
	return Options{
		Dir:         dir,
		Extensions:  []string{".md", ".markdown", ".md.zst"},
		AuthorsPage: "authors.html",
		Workers:     4,
	}
}

func TestLoad_Documents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "finding-closure-in-rust.md", `---
title: Finding Closure in Rust
author: Huon Wilson
---
# Finding Closure in Rust

By [Huon Wilson](authors.html#Huon%20Wilson). See [intro](part1/intro.html#why-rust).

## Traits
`)
	writeFile(t, dir, "part1/intro.md", "# Why Rust\n\nBack to [closures](../finding-closure-in-rust.html#traits).\n<a name=\"top\"></a>\n")
	writeFile(t, dir, "img/logo.png", "png")

	c, perrs, err := Load(context.Background(), defaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(perrs) != 0 {
		t.Fatalf("unexpected parse errors: %v", perrs)
	}
	if len(c.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(c.Documents))
	}
	if c.Documents[0].ID != "finding-closure-in-rust" || c.Documents[1].ID != "part1/intro" {
		t.Errorf("documents not sorted by id: %s, %s", c.Documents[0].ID, c.Documents[1].ID)
	}
	if !c.Assets["img/logo.png"] {
		t.Error("non-document files should be recorded as assets")
	}

	fc, ok := c.Document("finding-closure-in-rust")
	if !ok {
		t.Fatal("lookup by id failed")
	}
	if fc.Title != "Finding Closure in Rust" || fc.BodyLine != 5 {
		t.Errorf("title=%q bodyLine=%d", fc.Title, fc.BodyLine)
	}
	if !fc.HasAnchor("traits") {
		t.Errorf("missing heading anchor, have %v", fc.Anchors)
	}
	if len(fc.Links) != 2 {
		t.Fatalf("expected 2 links, got %+v", fc.Links)
	}
	author := fc.Links[0]
	if author.Dest.Kind != anthology.TargetAuthor || author.Dest.Fragment != "Huon%20Wilson" || author.Line != 7 {
		t.Errorf("author link = %+v", author)
	}
	intro := fc.Links[1]
	if intro.Dest.Slug != "part1/intro" || intro.Dest.Fragment != "why-rust" || intro.Source != "finding-closure-in-rust" {
		t.Errorf("intro link = %+v", intro)
	}

	in, _ := c.Document("part1/intro")
	if in.Title != "Why Rust" || !in.HasAnchor("top") {
		t.Errorf("intro title=%q anchors=%v", in.Title, in.Anchors)
	}
	if got := in.Links[0].Dest.Slug; got != "finding-closure-in-rust" {
		t.Errorf("relative link resolved to %q", got)
	}
}

func TestLoad_ZstdSources(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeZstd(t, dir, "compressed.md.zst", "---\ntitle: Packed\n---\nSee [home](index.html).\n")

	c, perrs, err := Load(context.Background(), defaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(perrs) != 0 {
		t.Fatalf("unexpected parse errors: %v", perrs)
	}
	d, ok := c.Document("compressed")
	if !ok {
		t.Fatalf("compressed document not loaded: %+v", c.Documents)
	}
	if d.Title != "Packed" || len(d.Links) != 1 || d.Links[0].Dest.Slug != "index" {
		t.Errorf("doc = %+v", d)
	}
}

func TestLoad_BadZstd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "broken.md.zst", "not zstd at all")
	writeFile(t, dir, "fine.md", "ok")

	c, perrs, err := Load(context.Background(), defaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(perrs) != 1 || !errors.Is(perrs[0], anthology.ErrUnreadableSource) {
		t.Fatalf("expected one UnreadableSource error, got %v", perrs)
	}
	if len(c.Documents) != 1 {
		t.Errorf("remaining documents should load, got %d", len(c.Documents))
	}
}

func TestLoad_MalformedFrontMatterDoesNotAbort(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "bad.md", "---\ntitle: never closed\n\n# Body\n")
	writeFile(t, dir, "good.md", "# Good\n")

	c, perrs, err := Load(context.Background(), defaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(perrs) != 1 {
		t.Fatalf("expected 1 parse error, got %v", perrs)
	}
	pe := perrs[0]
	if pe.Path != "bad.md" || pe.Line != 1 || pe.Kind() != "MalformedFrontMatter" {
		t.Errorf("parse error = %+v", pe)
	}
	if len(c.Documents) != 1 || c.Documents[0].ID != "good" {
		t.Errorf("documents = %+v", c.Documents)
	}
}

func TestLoad_DuplicateIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "chapter.md", "# One\n")
	writeZstd(t, dir, "chapter.md.zst", "# Two\n")
	writeFile(t, dir, "other.md", "---\nslug: chapter\n---\n# Three\n")

	c, _, err := Load(context.Background(), defaultOptions(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(c.Documents))
	}
	want := []string{"chapter.md", "chapter.md.zst", "other.md"}
	got := c.Duplicates["chapter"]
	if len(got) != len(want) {
		t.Fatalf("duplicates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("duplicates = %v, want %v", got, want)
		}
	}
	if c.Documents[0].Path != "chapter.md" {
		t.Errorf("first path in sort order should win, got %s", c.Documents[0].Path)
	}
}

func TestLoad_ExcludeAndSkip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "SUMMARY.md", "# Summary\n")
	writeFile(t, dir, "drafts/wip.md", "# WIP\n")
	writeFile(t, dir, "notes/keep.md", "# Keep\n")
	writeFile(t, dir, "notes/scratch.md", "# Scratch\n")
	writeFile(t, dir, ".git/HEAD.md", "# hidden\n")

	opts := defaultOptions(dir)
	opts.Exclude = []string{"drafts", "**/scratch.md"}
	opts.Skip = []string{filepath.Join(dir, "SUMMARY.md")}

	c, _, err := Load(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Documents) != 1 || c.Documents[0].ID != "notes/keep" {
		var ids []string
		for _, d := range c.Documents {
			ids = append(ids, d.ID)
		}
		t.Errorf("documents = %v, want [notes/keep]", ids)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	t.Parallel()
	_, _, err := Load(context.Background(), defaultOptions(filepath.Join(t.TempDir(), "nope")))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoad_Cancelled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# A\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Load(ctx, defaultOptions(dir))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoad_Deterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"c.md", "a.md", "b/z.md", "b/a.md"} {
		writeFile(t, dir, name, "# "+name+"\n")
	}

	var orders [][]string
	for range 3 {
		c, _, err := Load(context.Background(), defaultOptions(dir))
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, d := range c.Documents {
			ids = append(ids, d.ID)
		}
		orders = append(orders, ids)
	}
	for _, o := range orders[1:] {
		for i := range o {
			if o[i] != orders[0][i] {
				t.Fatalf("order changed between runs: %v vs %v", orders[0], o)
			}
		}
	}
}
