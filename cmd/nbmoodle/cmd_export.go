package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nbmoodle/internal/export"
	"nbmoodle/internal/gradebook"
)

// exportGradesCmd writes scores and feedback back into a Moodle
// grading worksheet.
var exportGradesCmd = &cobra.Command{
	Use:   "export-grades <assignment-id> <worksheet.csv>",
	Short: "Export grades and feedback into a Moodle grading worksheet",
	Long: `Exports the scores and autograder feedback for an assignment from the
nbgrader gradebook into a grading worksheet downloaded from Moodle.

Students are matched to worksheet rows through the pseudonymous
participant tokens recorded by "convert", so identities stay hidden.
The worksheet is rewritten in place and afterwards contains only the
header plus the rows this export actually graded; re-upload it to
Moodle as-is. If no row matches, the file is left untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: runExportGrades,
}

func runExportGrades(cmd *cobra.Command, args []string) error {
	assignmentID, worksheetPath := args[0], args[1]
	if _, err := os.Stat(worksheetPath); err != nil {
		return fmt.Errorf("the specified Moodle grading worksheet was not found: %s", worksheetPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gb, err := gradebook.Open(resolveGradebook(cfg))
	if err != nil {
		return err
	}
	defer gb.Close()

	e := &export.Exporter{Gradebook: gb, CourseDir: courseDir, Log: logger}

	logger.Info("retrieving participant grades",
		zap.String("assignment", assignmentID),
		zap.String("gradebook", gb.Path()))
	grades, err := e.CollectGrades(assignmentID)
	if err != nil {
		return err
	}
	if len(grades) == 0 {
		return fmt.Errorf("no graded submissions with participant mappings for assignment %s", assignmentID)
	}

	logger.Info("retrieving feedback for participant grades",
		zap.Int("participants", len(grades)))
	e.AttachFeedback(assignmentID, grades)

	matched, err := export.RewriteWorksheet(worksheetPath, grades)
	if err != nil {
		return err
	}

	logger.Info("worksheet rewritten",
		zap.String("worksheet", worksheetPath),
		zap.Int("rows", matched))
	fmt.Println("...Done!... [ OK ]")
	return nil
}
