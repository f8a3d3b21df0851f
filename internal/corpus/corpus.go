// Package corpus loads the chapter documents of an anthology from a source
// directory.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/jcdickinson/anthocheck/internal/frontmatter"
	"github.com/jcdickinson/anthocheck/internal/markdown"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// Options controls what Load reads.
type Options struct {
	Dir         string
	Extensions  []string // file suffixes treated as documents
	Exclude     []string // doublestar patterns relative to Dir
	Skip        []string // files never loaded, e.g. manifests inside Dir
	AuthorsPage string
	Workers     int
	Logger      *slog.Logger
}

// Corpus is the immutable set of documents of one run.
type Corpus struct {
	Dir       string
	Documents []*anthology.Document // sorted by ID
	// Duplicates maps ids claimed by more than one file to those files. The
	// first path in sort order is the one kept in Documents.
	Duplicates map[string][]string
	// Assets are non-document files, by slash path relative to Dir.
	Assets map[string]bool

	byID map[string]*anthology.Document
}

// Document looks up a document by id.
func (c *Corpus) Document(id string) (*anthology.Document, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Load reads every document under opts.Dir in parallel. Per-file failures are
// returned as ParseErrors and do not stop the run; the error result is
// reserved for failures that leave nothing to check, such as a missing
// directory or a cancelled context.
func Load(ctx context.Context, opts Options) (*Corpus, []*anthology.ParseError, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	files, assets, err := discover(opts)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("discovered sources", "dir", opts.Dir, "documents", len(files), "assets", len(assets))

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	docs := make([]*anthology.Document, len(files))
	perrs := make([]*anthology.ParseError, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i], perrs[i] = loadDocument(opts, dec, rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("loading documents: %w", err)
	}

	c := &Corpus{
		Dir:        opts.Dir,
		Duplicates: make(map[string][]string),
		Assets:     assets,
		byID:       make(map[string]*anthology.Document),
	}
	var loaded []*anthology.Document
	for _, d := range docs {
		if d != nil {
			loaded = append(loaded, d)
		}
	}
	sort.Slice(loaded, func(i, j int) bool {
		if loaded[i].ID != loaded[j].ID {
			return loaded[i].ID < loaded[j].ID
		}
		return loaded[i].Path < loaded[j].Path
	})
	for _, d := range loaded {
		if first, dup := c.byID[d.ID]; dup {
			if len(c.Duplicates[d.ID]) == 0 {
				c.Duplicates[d.ID] = []string{first.Path}
			}
			c.Duplicates[d.ID] = append(c.Duplicates[d.ID], d.Path)
			continue
		}
		c.byID[d.ID] = d
		c.Documents = append(c.Documents, d)
	}

	var errs []*anthology.ParseError
	for _, pe := range perrs {
		if pe != nil {
			logger.Debug("skipping malformed source", "path", pe.Path, "error", pe.Err)
			errs = append(errs, pe)
		}
	}
	return c, errs, nil
}

// discover walks opts.Dir and returns document paths and the asset set, both
// relative to the directory with forward slashes.
func discover(opts Options) ([]string, map[string]bool, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source %s is not a directory", opts.Dir)
	}

	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		if abs, err := filepath.Abs(s); err == nil {
			skip[abs] = true
		}
	}

	var files []string
	assets := make(map[string]bool)
	err = filepath.WalkDir(opts.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(opts.Dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || excluded(opts.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(opts.Exclude, rel) {
			return nil
		}
		if abs, err := filepath.Abs(p); err == nil && skip[abs] {
			return nil
		}
		if hasExtension(rel, opts.Extensions) {
			files = append(files, rel)
		} else {
			assets[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", opts.Dir, err)
	}
	return files, assets, nil
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func hasExtension(rel string, exts []string) bool {
	return slices.ContainsFunc(exts, func(ext string) bool {
		return strings.HasSuffix(rel, ext)
	})
}

// loadDocument reads and parses one source file.
func loadDocument(opts Options, dec *zstd.Decoder, rel string) (*anthology.Document, *anthology.ParseError) {
	raw, err := os.ReadFile(filepath.Join(opts.Dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, &anthology.ParseError{Path: rel, Err: fmt.Errorf("%w: %v", anthology.ErrUnreadableSource, err)}
	}
	if strings.HasSuffix(rel, ".zst") {
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, &anthology.ParseError{Path: rel, Err: fmt.Errorf("%w: decompressing: %v", anthology.ErrUnreadableSource, err)}
		}
	}

	meta, body, bodyLine, err := frontmatter.Parse(string(raw))
	if err != nil {
		var pe *anthology.ParseError
		if errors.As(err, &pe) {
			pe.Path = rel
			return nil, pe
		}
		return nil, &anthology.ParseError{Path: rel, Err: fmt.Errorf("%w: %v", anthology.ErrMalformedFrontMatter, err)}
	}

	doc := &anthology.Document{
		ID:          anthology.DocumentID(rel),
		Path:        rel,
		Title:       meta.Title,
		Authors:     meta.Authors,
		Tags:        meta.Tags,
		Draft:       meta.Draft,
		Extra:       meta.Extra,
		Body:        body,
		BodyLine:    bodyLine,
		Headings:    markdown.Headings(body),
		Anchors:     make(map[string]bool),
		Definitions: markdown.Definitions(body, bodyLine),
	}
	if meta.Slug != "" {
		doc.ID = meta.Slug
	}
	for _, h := range doc.Headings {
		doc.Anchors[h.ID] = true
		if doc.Title == "" && h.Level == 1 {
			doc.Title = h.Text
		}
	}
	for _, a := range markdown.HTMLAnchors(body) {
		doc.Anchors[a] = true
	}
	if doc.Title == "" {
		doc.Title = doc.ID
	}
	for l := range markdown.Links(body, bodyLine) {
		doc.Links = append(doc.Links, anthology.NewLink(doc.ID, rel, l, opts.AuthorsPage))
	}
	return doc, nil
}
