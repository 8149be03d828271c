package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nbmoodle/internal/harvest"
	"nbmoodle/internal/moss"
	"nbmoodle/internal/notebook"
)

var (
	mossIgnoreLimit   int
	mossMatchingFiles int
	mossConnections   int
	mossLanguage      string
	mossExtension     string
	mossDownload      bool
)

// mossCmd prepares notebook sources and runs a MOSS plagiarism check.
var mossCmd = &cobra.Command{
	Use:   "moss <assignment-id> <moss-user-id>",
	Short: "Check submissions for plagiarism with MOSS",
	Long: `Harvests the source code cells of every submitted notebook into a .py
file and uploads the batch to Stanford's MOSS similarity checker.

Cells locked in nbgrader are skipped, narrowing the comparison to
content the students wrote; cells without nbgrader metadata are
included, since those are the ones students added themselves. The
released assignment skeleton is registered as a MOSS base file so
shared boilerplate never counts as a match.

Harvested files are written under <course-dir>/moss/. With --download,
the report and its per-pair diff pages are saved under
<course-dir>/moss/report/<assignment-id>/.`,
	Args: cobra.ExactArgs(2),
	RunE: runMoss,
}

func init() {
	mossCmd.Flags().IntVarP(&mossIgnoreLimit, "ignore-limit", "i", 0,
		"ignore passages appearing in more than this many submissions (overrides nbmoodle.yaml, default 3)")
	mossCmd.Flags().IntVarP(&mossMatchingFiles, "matching-files", "n", 0,
		"limit of matching file pairs listed in the report (overrides nbmoodle.yaml, default 100)")
	mossCmd.Flags().IntVar(&mossConnections, "connections", 0,
		"parallel connections for the report download (overrides nbmoodle.yaml, default 8)")
	mossCmd.Flags().StringVar(&mossLanguage, "language", "",
		"MOSS language of the harvested sources (overrides nbmoodle.yaml, default python)")
	mossCmd.Flags().StringVarP(&mossExtension, "extension", "x", "",
		"notebook file extension (overrides nbmoodle.yaml, default .ipynb)")
	mossCmd.Flags().BoolVar(&mossDownload, "download", false,
		"download the MOSS report and the diff pages")
}

func runMoss(cmd *cobra.Command, args []string) error {
	assignmentID, userID := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	language := cfg.Moss.Language
	if cmd.Flags().Changed("language") {
		language = mossLanguage
	}
	extension := cfg.Extension
	if cmd.Flags().Changed("extension") {
		extension = mossExtension
	}

	client := moss.NewClient(userID, language, logger)
	client.Server = cfg.Moss.Server
	client.IgnoreLimit = cfg.Moss.IgnoreLimit
	client.MatchingFileLimit = cfg.Moss.MatchingFileLimit
	if cmd.Flags().Changed("ignore-limit") {
		client.IgnoreLimit = mossIgnoreLimit
	}
	if cmd.Flags().Changed("matching-files") {
		client.MatchingFileLimit = mossMatchingFiles
	}
	connections := cfg.Moss.Connections
	if cmd.Flags().Changed("connections") {
		connections = mossConnections
	}

	runner := &harvest.Runner{
		CourseDir:    courseDir,
		AssignmentID: assignmentID,
		Extension:    extension,
		Harvester:    &notebook.Harvester{Policy: notebook.TreatMalformedMetadataAsUnlocked},
		Service:      client,
		Log:          logger,
	}

	ctx := context.Background()
	url, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("MOSS plagiarism check report: %s\n", url)

	if mossDownload {
		reportDir := filepath.Join(courseDir, "moss", "report", assignmentID)
		logger.Info("downloading MOSS report and diff pages",
			zap.String("dir", reportDir),
			zap.Int("connections", connections))
		if err := moss.SaveReport(url, filepath.Join(reportDir, "report.html")); err != nil {
			return err
		}
		if err := moss.DownloadReport(url, reportDir, connections, logger); err != nil {
			return err
		}
	}

	fmt.Println("Done! [ OK ]")
	return nil
}
