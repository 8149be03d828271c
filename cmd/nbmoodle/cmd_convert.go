package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
	"nbmoodle/internal/submission"
)

var (
	convertZip       string
	convertExtension string
	convertYes       bool
)

// convertCmd converts a Moodle submissions ZIP into nbgrader layout.
var convertCmd = &cobra.Command{
	Use:   "convert <assignment-id>",
	Short: "Convert a Moodle submissions ZIP to the nbgrader layout",
	Long: `Converts submissions from the Moodle directory and naming format to the
one nbgrader expects, and records the participant/student mapping for
the later grade export.

Expects a prepared nbgrader environment: imported student IDs, source
and release notebooks for the assignment, and a working gradebook.
Place the downloaded ZIP under <course-dir>/moodle/<assignment-id>/ or
name it with --moodle-zip.

The run is idempotent per assignment: prior participant mappings are
wiped before the archive is processed.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertZip, "moodle-zip", "m", "",
		"Moodle ZIP archive (default: sole *.zip under <course-dir>/moodle/<assignment-id>/)")
	convertCmd.Flags().StringVarP(&convertExtension, "extension", "x", "",
		"expected extension of submitted files (overrides nbmoodle.yaml, default .ipynb)")
	convertCmd.Flags().BoolVarP(&convertYes, "yes", "y", false,
		"skip the interactive confirmation")
}

func runConvert(cmd *cobra.Command, args []string) error {
	assignmentID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	extension := cfg.Extension
	if cmd.Flags().Changed("extension") {
		extension = convertExtension
	}

	gb, err := gradebook.Open(resolveGradebook(cfg))
	if err != nil {
		return err
	}
	defer gb.Close()

	plan, err := submission.Validate(submission.Options{
		CourseDir:     courseDir,
		GradebookPath: gb.Path(),
		AssignmentID:  assignmentID,
		ArchivePath:   convertZip,
		Extension:     extension,
	}, gb)
	if err != nil {
		return fmt.Errorf("argument and environment validation failed: %w", err)
	}

	fmt.Println("The environment and provided arguments are valid [ OK ]")
	fmt.Printf("... course directory:    %s\n", plan.CourseDir)
	fmt.Printf("... gradebook db:        %s\n", plan.GradebookPath)
	fmt.Printf("... assignment ID:       %s\n", plan.AssignmentID)
	fmt.Printf("... notebook filename:   %s\n", plan.NotebookFilename)
	fmt.Printf("... Moodle ZIP archive:  %s\n", plan.ArchivePath)
	fmt.Printf("... nr. of submissions:  %d\n", plan.EntryCount)
	fmt.Printf("... target directory:    %s\n", plan.SubmittedDir)

	if !convertYes && !confirm("Do you wish to continue with these settings?") {
		fmt.Println("Execution cancelled.")
		os.Exit(2)
	}

	r := &submission.Relocator{Gradebook: gb, IDs: formatterFromConfig(cfg), Log: logger}
	n, err := r.Process(plan)
	if err != nil {
		return err
	}

	logger.Info("relocation finished",
		zap.String("assignment", assignmentID),
		zap.Int("processed", n),
		zap.Int("entries", plan.EntryCount))
	fmt.Printf("...nr. of submissions processed successfully: %d\n", n)
	fmt.Println("...exiting... [ OK ]")
	return nil
}
