package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Worksheet column layout as Moodle exports it: the first column is a
// label whose last whitespace-separated token is the participant
// token ("Participant 77"), the third column receives the grade, the
// seventh the feedback comment. Everything else is passed through
// untouched.
const (
	identifierColumn = 0
	scoreColumn      = 2
	feedbackColumn   = 6
	worksheetColumns = 7
)

// ErrNoMatches reports that no worksheet row matched a grade entry.
// The worksheet is left untouched in that case: rewriting it would
// produce a file holding only the header.
var ErrNoMatches = errors.New("export: no worksheet rows match the gradebook")

// RewriteWorksheet merges the grade entries into the downloaded
// grading worksheet, in place. The header row is preserved verbatim;
// matched data rows get score and feedback filled in; unmatched rows
// are dropped, so the uploaded sheet only changes grades this export
// actually produced. Returns the number of matched rows.
func RewriteWorksheet(path string, grades map[string]*GradeEntry) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open grading worksheet: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("cannot parse grading worksheet %s: %w", path, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("grading worksheet %s is empty", path)
	}

	result := [][]string{rows[0]}
	matched := 0
	for _, row := range rows[1:] {
		entry, ok := matchRow(row, grades)
		if !ok {
			continue
		}
		row[scoreColumn] = FormatScore(entry.Score)
		row[feedbackColumn] = entry.Feedback
		result = append(result, row)
		matched++
	}
	if matched == 0 {
		return 0, ErrNoMatches
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("cannot rewrite grading worksheet: %w", err)
	}
	w := csv.NewWriter(out)
	if err := w.WriteAll(result); err != nil {
		out.Close()
		return 0, fmt.Errorf("cannot rewrite grading worksheet: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return 0, fmt.Errorf("cannot rewrite grading worksheet: %w", err)
	}
	return matched, out.Close()
}

// matchRow resolves a data row to its grade entry via the participant
// token. Rows too short to carry score and feedback columns can never
// be Moodle worksheet rows and are treated as unmatched.
func matchRow(row []string, grades map[string]*GradeEntry) (*GradeEntry, bool) {
	if len(row) < worksheetColumns {
		return nil, false
	}
	fields := strings.Fields(row[identifierColumn])
	if len(fields) == 0 {
		return nil, false
	}
	entry, ok := grades[fields[len(fields)-1]]
	return entry, ok
}
