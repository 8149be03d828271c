package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
	"nbmoodle/internal/roster"
)

var (
	importIDPrefix string
	importIDPad    int
)

// importStudentsCmd imports a Moodle participant export into the
// gradebook.
var importStudentsCmd = &cobra.Command{
	Use:   "import-students <participants.csv>",
	Short: "Import a Moodle participant export into the gradebook",
	Long: `Imports student data from a Moodle participants CSV into the nbgrader
gradebook, creating or updating one student record per row.

Export the file from Moodle via:
  Participants / select all / With selected: "download table data as CSV"

The numeric Moodle ID is normalized into the canonical gradebook ID
(prefix + zero-padded number, "k00012345" by default).`,
	Args: cobra.ExactArgs(1),
	RunE: runImportStudents,
}

func init() {
	importStudentsCmd.Flags().StringVar(&importIDPrefix, "id-prefix", "",
		"canonical student ID prefix (overrides nbmoodle.yaml)")
	importStudentsCmd.Flags().IntVar(&importIDPad, "id-pad", 0,
		"zero-padding width of the numeric ID, 0 disables padding (overrides nbmoodle.yaml)")
}

func runImportStudents(cmd *cobra.Command, args []string) error {
	csvPath := args[0]
	if _, err := os.Stat(csvPath); err != nil {
		return fmt.Errorf("the specified participants CSV does not exist: %s", csvPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ids := formatterFromConfig(cfg)
	if cmd.Flags().Changed("id-prefix") {
		ids.Prefix = importIDPrefix
	}
	if cmd.Flags().Changed("id-pad") {
		ids.Pad = importIDPad
	}

	gb, err := gradebook.Open(resolveGradebook(cfg))
	if err != nil {
		return err
	}
	defer gb.Close()

	logger.Info("importing student data",
		zap.String("csv", csvPath),
		zap.String("gradebook", gb.Path()))

	im := &roster.Importer{Gradebook: gb, IDs: ids, Log: logger}
	n, err := im.ImportCSV(csvPath)
	if err != nil {
		return err
	}

	logger.Info("student import finished", zap.Int("students", n))
	fmt.Println("...exiting... [ OK ]")
	return nil
}
