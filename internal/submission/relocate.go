// Package submission converts a Moodle submissions ZIP archive into
// the per-student directory layout nbgrader expects, and records which
// pseudonymous Moodle participant each student was in that batch.
//
// Moodle names archive entries like
//
//	A1/Doe John_Participant_77_assignsubmission_file_/submission_k00012345.ipynb
//
// The participant token ("77") and the student ID ("k00012345") are
// both recovered from the entry path; the file lands at
// submitted/<student>/<assignment>/<notebook-filename>.
package submission

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
	"nbmoodle/internal/ident"
)

// participantPattern matches the pseudonymous token Moodle embeds in
// the submission directory name.
var participantPattern = regexp.MustCompile(`Participant_([0-9]+)_`)

var (
	// ErrNoArchive reports that no ZIP was found under the
	// conventional moodle/<assignment> directory.
	ErrNoArchive = errors.New("submission: no archive found")
	// ErrAmbiguousArchive reports more than one candidate ZIP; the
	// caller must name one explicitly.
	ErrAmbiguousArchive = errors.New("submission: multiple archives found")
)

// Options are the raw settings of one relocation run, before
// validation.
type Options struct {
	CourseDir     string
	GradebookPath string
	AssignmentID  string
	// ArchivePath is the Moodle ZIP; empty means resolve the sole
	// *.zip under <course>/moodle/<assignment>/.
	ArchivePath string
	// Extension of submission files inside the archive, e.g. ".ipynb".
	Extension string
}

// Plan is a validated run: every precondition has been checked and all
// paths are resolved. It is shown to the user before processing.
type Plan struct {
	CourseDir        string
	GradebookPath    string
	AssignmentID     string
	NotebookFilename string
	ArchivePath      string
	SubmittedDir     string
	Extension        string
	EntryCount       int
}

// Validate checks every precondition of a relocation run and resolves
// the archive, notebook filename and output directory. Any failure is
// fatal: nothing has been written yet and the run must not start.
func Validate(opts Options, gb gradebook.Gradebook) (*Plan, error) {
	info, err := os.Stat(opts.CourseDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("course directory %s does not exist", opts.CourseDir)
	}

	archivePath := opts.ArchivePath
	if archivePath == "" {
		archivePath, err = resolveArchive(opts.CourseDir, opts.AssignmentID)
		if err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("archive %s does not exist: %w", archivePath, err)
	}

	entries, err := countEntries(archivePath, opts.Extension)
	if err != nil {
		return nil, err
	}
	if entries == 0 {
		return nil, fmt.Errorf("archive %s contains no files with extension %s", archivePath, opts.Extension)
	}

	assignment, err := gb.FindAssignment(opts.AssignmentID)
	if err != nil {
		return nil, err
	}
	notebookFilename := assignment.NotebookName + opts.Extension

	submittedDir := filepath.Join(opts.CourseDir, "submitted")
	if err := os.MkdirAll(submittedDir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory %s: %w", submittedDir, err)
	}

	// Both the assignment skeleton and the released notebook must be
	// in place, otherwise the course is not ready for autograding.
	for _, sub := range []string{"source", "release"} {
		nbPath := filepath.Join(opts.CourseDir, sub, opts.AssignmentID, notebookFilename)
		if _, err := os.Stat(nbPath); err != nil {
			return nil, fmt.Errorf("unable to find the %s notebook: %s", sub, nbPath)
		}
	}

	return &Plan{
		CourseDir:        opts.CourseDir,
		GradebookPath:    opts.GradebookPath,
		AssignmentID:     opts.AssignmentID,
		NotebookFilename: notebookFilename,
		ArchivePath:      archivePath,
		SubmittedDir:     submittedDir,
		Extension:        opts.Extension,
		EntryCount:       entries,
	}, nil
}

// resolveArchive finds the sole ZIP under moodle/<assignment>.
func resolveArchive(courseDir, assignmentID string) (string, error) {
	dir := filepath.Join(courseDir, "moodle", assignmentID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("archive not specified and directory does not exist: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoArchive, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w in %s: name one with --moodle-zip", ErrAmbiguousArchive, dir)
	}
}

func countEntries(archivePath, extension string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("unable to read archive %s: %w", archivePath, err)
	}
	defer r.Close()

	n := 0
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, extension) {
			n++
		}
	}
	return n, nil
}

// Relocator extracts submissions from the validated archive.
type Relocator struct {
	Gradebook gradebook.Gradebook
	IDs       ident.Formatter
	Log       *zap.Logger
}

// Process runs the relocation. Prior association rows for the
// assignment are wiped first, so a rerun supersedes the previous batch
// completely. Per-entry failures (unmatched participant token,
// unmatched student ID, unknown student) are reported and skipped;
// only archive or database failures abort. Returns the number of
// entries processed successfully.
func (r *Relocator) Process(plan *Plan) (int, error) {
	archive, err := zip.OpenReader(plan.ArchivePath)
	if err != nil {
		return 0, fmt.Errorf("unable to read archive %s: %w", plan.ArchivePath, err)
	}
	defer archive.Close()

	if err := r.Gradebook.ClearAssociations(plan.AssignmentID); err != nil {
		return 0, err
	}

	processed := 0
	for _, f := range archive.File {
		if !strings.HasSuffix(f.Name, plan.Extension) {
			continue
		}
		r.Log.Info("processing submission", zap.String("entry", f.Name))

		m := participantPattern.FindStringSubmatch(f.Name)
		if m == nil {
			r.Log.Error("no participant token in entry path, skipping",
				zap.String("entry", f.Name))
			continue
		}
		participant := m[1]

		studentID, err := r.IDs.FindInPath(f.Name)
		if err != nil {
			r.Log.Error("submission file naming incorrect, skipping",
				zap.String("entry", f.Name), zap.Error(err))
			continue
		}

		if _, err := r.Gradebook.FindStudent(studentID); err != nil {
			r.Log.Error("student ID not found in gradebook, skipping",
				zap.String("entry", f.Name), zap.String("student", studentID))
			continue
		}

		if err := r.extract(f, plan, studentID); err != nil {
			return processed, err
		}

		if err := r.Gradebook.AddAssociation(gradebook.Association{
			AssignmentID:     plan.AssignmentID,
			StudentID:        studentID,
			ParticipantToken: participant,
		}); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// extract writes the entry's bytes under the nbgrader-expected name,
// overwriting any prior submission of the same student.
func (r *Relocator) extract(f *zip.File, plan *Plan, studentID string) error {
	outDir := filepath.Join(plan.SubmittedDir, studentID, plan.AssignmentID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("unable to create %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, plan.NotebookFilename)

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("unable to read archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", outPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("unable to write %s: %w", outPath, err)
	}
	return dst.Close()
}
