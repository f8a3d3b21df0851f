package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type SourceConfig struct {
	Dir               string   `mapstructure:"dir"`
	Extensions        []string `mapstructure:"extensions"`
	Exclude           []string `mapstructure:"exclude"`
	SharedDefinitions []string `mapstructure:"shared_definitions"`
}

type ManifestConfig struct {
	Paths           []string `mapstructure:"paths"`
	RequireSections bool     `mapstructure:"require_sections"`
}

type AuthorsConfig struct {
	Page string `mapstructure:"page"`
}

type PolicyConfig struct {
	Orphans report.OrphanPolicy `mapstructure:"orphans"`
}

type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Authors  AuthorsConfig  `mapstructure:"authors"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Workers  int            `mapstructure:"workers"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ReportPolicy returns the exit-code policy the config selects.
func (c *Config) ReportPolicy() report.Policy {
	return report.Policy{Orphans: c.Policy.Orphans}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"source":           "source.dir",
	"extensions":       "source.extensions",
	"exclude":          "source.exclude",
	"shared":           "source.shared_definitions",
	"manifest":         "manifest.paths",
	"require-sections": "manifest.require_sections",
	"authors-page":     "authors.page",
	"orphans":          "policy.orphans",
	"workers":          "workers",
}

// RegisterFlags adds the flags that override config keys. Flag defaults are
// ignored; only flags set on the command line take effect.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("source", "s", "", "directory of chapter documents (source.dir)")
	flags.StringSlice("extensions", nil, "document file extensions (source.extensions)")
	flags.StringSlice("exclude", nil, "glob patterns of files to skip, relative to the source dir (source.exclude)")
	flags.StringSlice("shared", nil, "globs of footer documents whose link definitions every chapter may use (source.shared_definitions)")
	flags.StringSliceP("manifest", "m", nil, "table of contents files (manifest.paths)")
	flags.Bool("require-sections", false, "reject chapters listed before the first manifest heading (manifest.require_sections)")
	flags.String("authors-page", "", "page author links point at (authors.page)")
	flags.String("orphans", "", "orphaned documents: warn or fail (policy.orphans)")
	flags.IntP("workers", "j", 0, "parallel document loaders (workers)")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("source.dir", "src")
	v.SetDefault("source.extensions", []string{".md", ".markdown", ".md.zst"})
	v.SetDefault("source.exclude", []string{})
	v.SetDefault("source.shared_definitions", []string{})
	v.SetDefault("manifest.paths", []string{filepath.Join("src", "SUMMARY.md")})
	v.SetDefault("manifest.require_sections", false)
	v.SetDefault("authors.page", "authors.html")
	v.SetDefault("policy.orphans", string(report.OrphansWarn))
	v.SetDefault("workers", runtime.NumCPU())

	v.SetEnvPrefix("ANTHOCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves the configuration. Priority: flags set on the command line,
// then ANTHOCHECK_* environment variables, then the config file, then
// defaults. With file empty, anthocheck.toml is looked up in the working
// directory and the XDG config directory; a missing file is not an error.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("anthocheck")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "anthocheck"))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "anthocheck"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToOrphanPolicyHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Source.Extensions = trimAll(config.Source.Extensions)
	config.Source.Exclude = trimAll(config.Source.Exclude)
	config.Source.SharedDefinitions = trimAll(config.Source.SharedDefinitions)
	config.Manifest.Paths = trimAll(config.Manifest.Paths)
	config.File = v.ConfigFileUsed()
	return &config, nil
}

func stringToOrphanPolicyHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(report.OrphanPolicy("")) || f.Kind() != reflect.String {
			return data, nil
		}
		return report.ParseOrphanPolicy(reflect.ValueOf(data).String())
	}
}

// trimAll trims every entry and drops empty ones, so "a, b," from the
// environment reads as [a b].
func trimAll(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects configurations no check can run with.
func Validate(c *Config) error {
	if c.Source.Dir == "" {
		return errors.New("source.dir cannot be empty")
	}
	if len(c.Source.Extensions) == 0 {
		return errors.New("source.extensions needs at least one extension")
	}
	if len(c.Manifest.Paths) == 0 {
		return errors.New("manifest.paths needs at least one manifest")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, err := report.ParseOrphanPolicy(string(c.Policy.Orphans)); err != nil {
		return fmt.Errorf("policy.orphans: %w", err)
	}
	return nil
}

// Log writes the resolved configuration at debug level.
func Log(c *Config, logger *slog.Logger) {
	ctx := context.Background()
	if c.File != "" {
		logger.DebugContext(ctx, "Config: file", "value", c.File)
	}
	logger.DebugContext(ctx, "Config: source", "dir", c.Source.Dir, "extensions", c.Source.Extensions,
		"exclude", c.Source.Exclude, "shared_definitions", c.Source.SharedDefinitions)
	logger.DebugContext(ctx, "Config: manifest", "paths", c.Manifest.Paths, "require_sections", c.Manifest.RequireSections)
	logger.DebugContext(ctx, "Config: authors.page", "value", c.Authors.Page)
	logger.DebugContext(ctx, "Config: policy.orphans", "value", c.Policy.Orphans)
	logger.DebugContext(ctx, "Config: workers", "value", c.Workers)
}
