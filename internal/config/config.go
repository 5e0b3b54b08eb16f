// Package config handles project configuration: the location of the
// dependency diagram, the lineage store, and worktree conventions.
// Settings load from .spectrena.yaml in the repository root with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = ".spectrena.yaml"

// Config holds all spectrena settings for one repository.
type Config struct {
	// DepsFile is the dependency diagram path, relative to the repo
	// root unless absolute.
	DepsFile string `mapstructure:"deps_file" yaml:"deps_file"`
	// DatabasePath is the lineage store location.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	// Worktree holds git worktree conventions.
	Worktree WorktreeConfig `mapstructure:"worktree" yaml:"worktree"`
}

// WorktreeConfig holds git worktree conventions.
type WorktreeConfig struct {
	// BranchPrefix is prepended to spec identifiers for branch names.
	BranchPrefix string `mapstructure:"branch_prefix" yaml:"branch_prefix"`
	// BaseBranch is the branch worktrees are cut from and merged into.
	BaseBranch string `mapstructure:"base_branch" yaml:"base_branch"`
	// Root is the directory worktrees are created under.
	Root string `mapstructure:"root" yaml:"root"`
}

// Default returns the conventional configuration.
func Default() *Config {
	return &Config{
		DepsFile:     "deps.mermaid",
		DatabasePath: filepath.Join(".spectrena", "lineage.db"),
		Worktree: WorktreeConfig{
			BranchPrefix: "spec/",
			BaseBranch:   "main",
			Root:         filepath.Join("..", "worktrees"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("deps_file", d.DepsFile)
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("worktree.branch_prefix", d.Worktree.BranchPrefix)
	v.SetDefault("worktree.base_branch", d.Worktree.BaseBranch)
	v.SetDefault("worktree.root", d.Worktree.Root)
}

// Load reads configuration for the repository at root. A missing
// config file yields the defaults; SPECTRENA_* environment variables
// override file values.
func Load(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("SPECTRENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the system cannot work with.
func (c *Config) Validate() error {
	if c.DepsFile == "" {
		return fmt.Errorf("deps_file cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}
	if c.Worktree.BranchPrefix == "" {
		return fmt.Errorf("worktree.branch_prefix cannot be empty")
	}
	if strings.ContainsAny(c.Worktree.BranchPrefix, " ~^:?*[\\") {
		return fmt.Errorf("worktree.branch_prefix %q contains characters invalid in git refs", c.Worktree.BranchPrefix)
	}
	if c.Worktree.BaseBranch == "" {
		return fmt.Errorf("worktree.base_branch cannot be empty")
	}
	if c.Worktree.Root == "" {
		return fmt.Errorf("worktree.root cannot be empty")
	}
	return nil
}

// Init writes the default configuration file into root and creates
// the store directory and an empty diagram if absent. Fails if the
// config file already exists.
func Init(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}

	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Join(root, filepath.Dir(cfg.DatabasePath)), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	depsPath := cfg.DepsPath(root)
	if _, err := os.Stat(depsPath); os.IsNotExist(err) {
		if err := os.WriteFile(depsPath, []byte("graph TD\n"), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", depsPath, err)
		}
	}
	return cfg, nil
}

// DepsPath resolves the diagram path against root.
func (c *Config) DepsPath(root string) string {
	if filepath.IsAbs(c.DepsFile) {
		return c.DepsFile
	}
	return filepath.Join(root, c.DepsFile)
}

// StorePath resolves the database path against root.
func (c *Config) StorePath(root string) string {
	if filepath.IsAbs(c.DatabasePath) {
		return c.DatabasePath
	}
	return filepath.Join(root, c.DatabasePath)
}

// WorktreeRoot resolves the worktree root against root.
func (c *Config) WorktreeRoot(root string) string {
	if filepath.IsAbs(c.Worktree.Root) {
		return c.Worktree.Root
	}
	return filepath.Join(root, c.Worktree.Root)
}
