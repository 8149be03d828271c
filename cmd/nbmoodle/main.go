package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nbmoodle/internal/config"
	"nbmoodle/internal/ident"
)

var (
	// Global flags
	verbose       bool
	courseDir     string
	gradebookPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nbmoodle",
	Short: "Moodle / nbgrader glue utilities",
	Long: `nbmoodle glues a Moodle course to an nbgrader grading environment.

It covers the full blind-grading loop: import the Moodle participant
roster into the gradebook, convert a downloaded submissions ZIP into
the directory layout nbgrader expects, export scores and autograder
feedback back into the Moodle grading worksheet, and prepare notebook
sources for a MOSS plagiarism check.

Run it from the nbgrader course root (where gradebook.db lives), or
point --course-dir there. An optional nbmoodle.yaml in the course root
overrides the built-in defaults; flags override both.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&courseDir, "course-dir", "d", ".", "nbgrader course directory")
	rootCmd.PersistentFlags().StringVarP(&gradebookPath, "gradebook", "g", "",
		"gradebook database (default: gradebook.db in the course directory)")

	rootCmd.AddCommand(importStudentsCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(exportGradesCmd)
	rootCmd.AddCommand(mossCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the optional per-course settings file.
func loadConfig() (config.Config, error) {
	return config.Load(courseDir)
}

// resolveGradebook applies the flag > file > default precedence for
// the gradebook path.
func resolveGradebook(cfg config.Config) string {
	if gradebookPath != "" {
		return gradebookPath
	}
	return cfg.GradebookPath(courseDir)
}

// formatterFromConfig builds the canonical student-ID policy every
// subcommand shares.
func formatterFromConfig(cfg config.Config) ident.Formatter {
	return ident.Formatter{Prefix: cfg.StudentID.Prefix, Pad: cfg.StudentID.Pad}
}

// confirm asks a y/N question on stdin and returns the answer.
func confirm(question string) bool {
	fmt.Printf("\n%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
