// Package check runs the whole consistency check: load the corpus and the
// manifests, index the authors, validate, and collect a report.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/jcdickinson/anthocheck/internal/authors"
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/corpus"
	"github.com/jcdickinson/anthocheck/internal/manifest"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/jcdickinson/anthocheck/internal/validate"
)

// Result is everything one run produced.
type Result struct {
	Corpus    *corpus.Corpus
	Manifests []*manifest.Tree
	Registry  *authors.Registry
	Report    report.Report
}

// Run checks the anthology cfg describes. Malformed documents and manifests
// end up in Report.ParseErrors; the error result means nothing could be
// checked at all.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, perrs, err := corpus.Load(ctx, corpus.Options{
		Dir:         cfg.Source.Dir,
		Extensions:  cfg.Source.Extensions,
		Exclude:     cfg.Source.Exclude,
		Skip:        cfg.Manifest.Paths,
		AuthorsPage: cfg.Authors.Page,
		Workers:     cfg.Workers,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded corpus", "documents", len(c.Documents), "parse_errors", len(perrs))

	trees, merrs := LoadManifests(cfg.Manifest.Paths, manifest.Options{RequireSections: cfg.Manifest.RequireSections})
	perrs = append(perrs, merrs...)
	logger.Debug("parsed manifests", "manifests", len(trees), "parse_errors", len(merrs))

	shared, err := sharedDocuments(c.Documents, cfg.Source.SharedDefinitions)
	if err != nil {
		return nil, err
	}

	reg := authors.Build(c.Documents, cfg.Authors.Page)
	logger.Debug("built author registry", "authors", len(reg.Authors()), "ambiguities", len(reg.Ambiguities()))

	issues := validate.Validate(validate.Input{
		Documents:         c.Documents,
		Duplicates:        c.Duplicates,
		Assets:            c.Assets,
		Manifests:         trees,
		Registry:          reg,
		AuthorsPage:       cfg.Authors.Page,
		SharedDefinitions: shared,
	})

	sort.SliceStable(perrs, func(i, j int) bool {
		if perrs[i].Path != perrs[j].Path {
			return perrs[i].Path < perrs[j].Path
		}
		return perrs[i].Line < perrs[j].Line
	})
	return &Result{
		Corpus:    c,
		Manifests: trees,
		Registry:  reg,
		Report: report.Report{
			Documents:   len(c.Documents),
			Manifests:   len(trees),
			ParseErrors: perrs,
			Issues:      issues,
		},
	}, nil
}

// LoadManifests parses every manifest file. Files that cannot be read or
// parsed are returned as ParseErrors.
func LoadManifests(paths []string, opts manifest.Options) ([]*manifest.Tree, []*anthology.ParseError) {
	var (
		trees []*manifest.Tree
		perrs []*anthology.ParseError
	)
	for _, p := range paths {
		tree, err := loadManifest(p, opts)
		if err != nil {
			var pe *anthology.ParseError
			if !errors.As(err, &pe) {
				pe = &anthology.ParseError{Path: filepath.ToSlash(p), Err: err}
			}
			perrs = append(perrs, pe)
			continue
		}
		trees = append(trees, tree)
	}
	return trees, perrs
}

func loadManifest(p string, opts manifest.Options) (*manifest.Tree, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", anthology.ErrUnreadableSource, err)
	}
	defer f.Close()

	tree, err := manifest.Parse(filepath.ToSlash(p), f, opts)
	if err != nil {
		return nil, err
	}
	if err := tree.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", anthology.ErrMalformedManifest, err)
	}
	return tree, nil
}

// sharedDocuments returns the ids of documents whose path matches one of
// the globs.
func sharedDocuments(docs []*anthology.Document, globs []string) ([]string, error) {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid shared definition pattern %q", g)
		}
	}
	var ids []string
	for _, d := range docs {
		for _, g := range globs {
			if ok, _ := doublestar.Match(g, d.Path); ok {
				ids = append(ids, d.ID)
				break
			}
		}
	}
	return ids, nil
}
