// Package export writes nbgrader scores and autograder feedback back
// into a Moodle grading worksheet. Students are matched to worksheet
// rows through the pseudonymous participant tokens recorded by the
// submission relocator, so grading stays blind end to end.
package export

import (
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
)

// GradeEntry is the assembled result for one participant: the score
// from the gradebook plus the feedback text harvested from the
// generated report.
type GradeEntry struct {
	ParticipantToken string
	StudentID        string
	FirstName        string
	LastName         string
	Score            float64
	MaxScore         float64
	Feedback         string
}

// Exporter assembles grade entries for one assignment.
type Exporter struct {
	Gradebook gradebook.Gradebook
	CourseDir string
	Log       *zap.Logger
}

// CollectGrades builds the participant-token -> entry map for the
// assignment. Submissions whose student has no association row are
// reported and skipped: without a token the row cannot be matched to
// the worksheet anyway.
func (e *Exporter) CollectGrades(assignmentID string) (map[string]*GradeEntry, error) {
	lookup, err := e.Gradebook.Associations(assignmentID)
	if err != nil {
		return nil, err
	}

	subs, err := e.Gradebook.AssignmentSubmissions(assignmentID)
	if err != nil {
		return nil, err
	}

	grades := make(map[string]*GradeEntry)
	for _, sub := range subs {
		token, ok := lookup[sub.StudentID]
		if !ok {
			e.Log.Error("student not in participant lookup table, skipping",
				zap.String("student", sub.StudentID),
				zap.String("assignment", assignmentID))
			continue
		}
		grades[token] = &GradeEntry{
			ParticipantToken: token,
			StudentID:        sub.StudentID,
			FirstName:        sub.FirstName,
			LastName:         sub.LastName,
			Score:            sub.Score,
			MaxScore:         sub.MaxScore,
		}
	}
	return grades, nil
}

// AttachFeedback fills in the Feedback field of every entry from the
// generated report under <course>/feedback/<student>/<assignment>/.
// A missing report is a per-student error: the entry keeps empty
// feedback and the export continues.
func (e *Exporter) AttachFeedback(assignmentID string, grades map[string]*GradeEntry) {
	feedbackDir := filepath.Join(e.CourseDir, "feedback")
	for _, entry := range grades {
		reportGlob := filepath.Join(feedbackDir, entry.StudentID, assignmentID, "*.html")
		matches, err := filepath.Glob(reportGlob)
		if err != nil || len(matches) == 0 {
			e.Log.Error("no html feedback file found",
				zap.String("student", entry.StudentID),
				zap.String("assignment", assignmentID))
			continue
		}
		if len(matches) > 1 {
			e.Log.Warn("multiple feedback files found, using first",
				zap.String("student", entry.StudentID),
				zap.Strings("files", matches))
		}

		feedback, err := FeedbackFromReport(matches[0], entry.Score == entry.MaxScore)
		if err != nil {
			e.Log.Error("failed to extract feedback",
				zap.String("student", entry.StudentID), zap.Error(err))
			continue
		}
		entry.Feedback = feedback
	}
}

// FormatScore renders a score the way Moodle accepts it on re-upload:
// integral values without a trailing ".0".
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
