// Package harvest drives the plagiarism-check preparation for one
// assignment: every notebook is reduced to its student-editable source
// and the resulting .py files are submitted to the similarity service,
// with the released skeleton registered as the shared-boilerplate
// baseline.
package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"nbmoodle/internal/notebook"
)

// Service is the similarity-service surface the runner needs;
// implemented by moss.Client.
type Service interface {
	AddBaseFile(path string)
	AddFile(path string)
	Send(ctx context.Context) (string, error)
}

// Runner harvests and submits one assignment's notebooks.
type Runner struct {
	CourseDir    string
	AssignmentID string
	// Extension of notebook files, e.g. ".ipynb".
	Extension string
	Harvester *notebook.Harvester
	Service   Service
	Log       *zap.Logger
}

// Run harvests the released skeleton and every student submission,
// registers them with the service and submits the batch. Returns the
// report URL.
func (r *Runner) Run(ctx context.Context) (string, error) {
	if err := r.addBasefile(); err != nil {
		return "", err
	}
	n, err := r.addSubmissions()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("no submissions found for assignment %s under %s",
			r.AssignmentID, filepath.Join(r.CourseDir, "submitted"))
	}

	r.Log.Info("sending batch to similarity service", zap.Int("submissions", n))
	return r.Service.Send(ctx)
}

// addBasefile harvests the released notebook into
// moss/basefile/<assignment>/ and registers it as the ignored
// baseline.
func (r *Runner) addBasefile() error {
	releaseDir := filepath.Join(r.CourseDir, "release", r.AssignmentID)
	matches, err := filepath.Glob(filepath.Join(releaseDir, "*"+r.Extension))
	if err != nil || len(matches) == 0 {
		return fmt.Errorf("no released notebook found under %s", releaseDir)
	}
	nbPath := matches[0]

	outPath := filepath.Join(r.CourseDir, "moss", "basefile", r.AssignmentID, r.pyName(nbPath))
	cells, err := r.Harvester.HarvestFile(nbPath, outPath)
	if err != nil {
		return fmt.Errorf("harvesting basefile: %w", err)
	}
	r.Log.Info("basefile harvested",
		zap.String("output", outPath), zap.Int("cells", cells))
	r.Service.AddBaseFile(outPath)
	return nil
}

// addSubmissions harvests every submitted notebook for the assignment
// into moss/<student>/<assignment>/ and registers each as a
// comparison submission. Returns the number of files registered.
func (r *Runner) addSubmissions() (int, error) {
	submittedDir := filepath.Join(r.CourseDir, "submitted")
	students, err := os.ReadDir(submittedDir)
	if err != nil {
		return 0, fmt.Errorf("cannot read submissions root %s: %w", submittedDir, err)
	}

	added := 0
	for _, student := range students {
		if !student.IsDir() {
			continue
		}
		pattern := filepath.Join(submittedDir, student.Name(), r.AssignmentID, "*"+r.Extension)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return added, err
		}
		for _, nbPath := range matches {
			outPath := filepath.Join(r.CourseDir, "moss", student.Name(), r.AssignmentID, r.pyName(nbPath))
			cells, err := r.Harvester.HarvestFile(nbPath, outPath)
			if err != nil {
				// A submission that is not valid notebook JSON cannot
				// be checked, but the rest of the batch still can.
				r.Log.Error("skipping unparseable submission",
					zap.String("notebook", nbPath), zap.Error(err))
				continue
			}
			r.Log.Info("submission harvested",
				zap.String("output", outPath), zap.Int("cells", cells))
			r.Service.AddFile(outPath)
			added++
		}
	}
	return added, nil
}

// pyName swaps the notebook extension for .py.
func (r *Runner) pyName(nbPath string) string {
	name := filepath.Base(nbPath)
	return strings.TrimSuffix(name, r.Extension) + ".py"
}
