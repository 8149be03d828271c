// Package config loads the optional per-course nbmoodle.yaml file.
// Every value has a built-in default matching a stock nbgrader course
// layout; command-line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the course root directory.
const FileName = "nbmoodle.yaml"

// Config holds the per-course tool settings.
type Config struct {
	// Gradebook is the nbgrader database path, relative paths resolved
	// against the course directory.
	Gradebook string `yaml:"gradebook"`

	// StudentID is the canonical student-ID policy shared by all
	// subcommands.
	StudentID StudentIDConfig `yaml:"student_id"`

	// Extension of submitted files inside Moodle archives.
	Extension string `yaml:"extension"`

	// Moss configures the similarity-check client.
	Moss MossConfig `yaml:"moss"`
}

// StudentIDConfig configures canonical ID formatting.
type StudentIDConfig struct {
	Prefix string `yaml:"prefix"`
	Pad    int    `yaml:"pad"`
}

// MossConfig configures the MOSS client defaults.
type MossConfig struct {
	Server            string `yaml:"server"`
	Language          string `yaml:"language"`
	IgnoreLimit       int    `yaml:"ignore_limit"`
	MatchingFileLimit int    `yaml:"matching_file_limit"`
	Connections       int    `yaml:"connections"`
}

// Default returns the built-in settings for a stock nbgrader course.
func Default() Config {
	return Config{
		Gradebook: "gradebook.db",
		StudentID: StudentIDConfig{Prefix: "k", Pad: 8},
		Extension: ".ipynb",
		Moss: MossConfig{
			Server:            "moss.stanford.edu:7690",
			Language:          "python",
			IgnoreLimit:       3,
			MatchingFileLimit: 100,
			Connections:       8,
		},
	}
}

// Load reads nbmoodle.yaml from courseDir if present and merges it over
// the defaults. A missing file is not an error; a malformed one is.
func Load(courseDir string) (Config, error) {
	cfg := Default()
	path := filepath.Join(courseDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// GradebookPath resolves the configured gradebook location against the
// course directory.
func (c Config) GradebookPath(courseDir string) string {
	if filepath.IsAbs(c.Gradebook) {
		return c.Gradebook
	}
	return filepath.Join(courseDir, c.Gradebook)
}
