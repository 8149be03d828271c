// Package gradebook provides access to an nbgrader course database.
//
// The student, assignment, notebook and grade tables are owned by
// nbgrader; this package only queries them through a narrow capability
// interface. The one table it owns is moodle_part_student, the
// auxiliary lookup that maps canonical student IDs to the pseudonymous
// Moodle participant tokens of one submission batch.
package gradebook

import "errors"

// ErrNotFound reports a missing student or assignment.
var ErrNotFound = errors.New("gradebook: not found")

// Student is one row of the nbgrader student table, keyed by the
// canonical student ID.
type Student struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Assignment is an nbgrader assignment together with the name of its
// first notebook, which determines the expected submission filename.
type Assignment struct {
	Name         string
	NotebookName string
}

// Submission is a graded submission of one student for one assignment.
// Score and MaxScore are the values nbgrader's own API reports: the sum
// of cell scores (manual overriding auto, plus extra credit) and the
// sum of grade-cell maximums.
type Submission struct {
	StudentID string
	FirstName string
	LastName  string
	Score     float64
	MaxScore  float64
}

// Association links a Moodle participant token to a canonical student
// ID for one assignment. AssignmentID is the nbgrader assignment name.
type Association struct {
	AssignmentID     string
	StudentID        string
	ParticipantToken string
}

// Gradebook is the capability surface the nbmoodle tools need from the
// grading toolchain's store. The SQLite implementation is Store;
// tests substitute fakes.
type Gradebook interface {
	FindStudent(id string) (Student, error)
	UpsertStudent(s Student) error
	FindAssignment(name string) (Assignment, error)
	AssignmentSubmissions(name string) ([]Submission, error)

	// ClearAssociations deletes all association rows for the
	// assignment, creating the lookup table on first use. Each
	// relocation run calls it before inserting, so reruns supersede
	// prior batches.
	ClearAssociations(assignment string) error
	AddAssociation(a Association) error
	// Associations returns studentID -> participant token for the
	// assignment.
	Associations(assignment string) (map[string]string, error)
}
