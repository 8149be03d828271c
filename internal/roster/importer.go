// Package roster imports a Moodle participant export into the
// gradebook. The export is the "download table data as CSV" file from
// the Moodle participants page: a header row followed by rows of
// (first name, last name, numeric student ID, email).
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
	"nbmoodle/internal/ident"
)

// Importer upserts students from a participants CSV into the
// gradebook.
type Importer struct {
	Gradebook gradebook.Gradebook
	IDs       ident.Formatter
	Log       *zap.Logger
}

// ImportCSV reads the participants file and upserts one student per
// data row. Existing students are updated in place. A malformed
// numeric ID aborts the whole run: it means the file is not a
// participant export, and continuing would import garbage. Returns the
// number of rows imported before any error.
func (im *Importer) ImportCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open participants CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	imported := 0
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("participants CSV line %d: %w", line, err)
		}
		if line == 1 {
			// Header row.
			continue
		}
		if len(row) < 4 {
			return imported, fmt.Errorf("participants CSV line %d: expected 4 columns, got %d", line, len(row))
		}

		firstName, lastName, rawID, email := row[0], row[1], row[2], row[3]
		studentID, err := im.IDs.Format(rawID)
		if err != nil {
			return imported, fmt.Errorf("participants CSV line %d: %w", line, err)
		}

		st := gradebook.Student{
			ID:        studentID,
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
		}
		if err := im.Gradebook.UpsertStudent(st); err != nil {
			return imported, fmt.Errorf("participants CSV line %d: %w", line, err)
		}
		im.Log.Debug("student imported",
			zap.String("student", studentID),
			zap.String("email", email))
		imported++
	}
	return imported, nil
}
