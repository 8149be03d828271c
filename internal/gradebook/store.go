package gradebook

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed Gradebook. It expects an existing
// nbgrader database; it never creates one, because a gradebook without
// nbgrader's own schema would be useless to every tool in this
// repository.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens an existing gradebook database. A missing file is an
// error: every command treats it as a fatal precondition failure.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("gradebook database %s does not exist: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open gradebook database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open %s as a gradebook database: %w", path, err)
	}

	return &Store{db: db, dbPath: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// FindStudent returns the student with the given canonical ID, or
// ErrNotFound.
func (s *Store) FindStudent(id string) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Student
	row := s.db.QueryRow(
		`SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, '')
		   FROM student WHERE id = ?`, id)
	if err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
		}
		return Student{}, fmt.Errorf("failed to look up student %s: %w", id, err)
	}
	return st, nil
}

// UpsertStudent creates the student record or updates name and email of
// an existing one, keyed by the canonical ID.
func (s *Store) UpsertStudent(st Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO student (id, first_name, last_name, email) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   first_name = excluded.first_name,
		   last_name  = excluded.last_name,
		   email      = excluded.email`,
		st.ID, st.FirstName, st.LastName, st.Email)
	if err != nil {
		return fmt.Errorf("failed to upsert student %s: %w", st.ID, err)
	}
	return nil
}

// FindAssignment returns the assignment with the given name and its
// first notebook's name, or ErrNotFound when either is missing. An
// assignment without notebooks cannot receive submissions, so it is
// reported the same way as a missing assignment.
func (s *Store) FindAssignment(name string) (Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a Assignment
	row := s.db.QueryRow(
		`SELECT a.name, n.name
		   FROM assignment a JOIN notebook n ON n.assignment_id = a.id
		  WHERE a.name = ?
		  ORDER BY n.rowid LIMIT 1`, name)
	if err := row.Scan(&a.Name, &a.NotebookName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, fmt.Errorf("assignment %s: %w", name, ErrNotFound)
		}
		return Assignment{}, fmt.Errorf("failed to look up assignment %s: %w", name, err)
	}
	return a, nil
}

// AssignmentSubmissions enumerates the graded submissions for an
// assignment. The score aggregates per-cell grades the way nbgrader
// does: manual score overrides auto score, extra credit is added on
// top. MaxScore is identical for every row of one assignment.
func (s *Store) AssignmentSubmissions(name string) ([]Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxScore float64
	row := s.db.QueryRow(
		`SELECT COALESCE(SUM(gc.max_score), 0)
		   FROM grade_cell gc
		   JOIN notebook n ON gc.notebook_id = n.id
		   JOIN assignment a ON n.assignment_id = a.id
		  WHERE a.name = ?`, name)
	if err := row.Scan(&maxScore); err != nil {
		return nil, fmt.Errorf("failed to compute max score for %s: %w", name, err)
	}

	rows, err := s.db.Query(
		`SELECT sa.student_id,
		        COALESCE(st.first_name, ''), COALESCE(st.last_name, ''),
		        COALESCE(SUM(COALESCE(g.manual_score, g.auto_score, 0) + COALESCE(g.extra_credit, 0)), 0)
		   FROM submitted_assignment sa
		   JOIN assignment a ON a.id = sa.assignment_id
		   JOIN student st ON st.id = sa.student_id
		   LEFT JOIN submitted_notebook sn ON sn.assignment_id = sa.id
		   LEFT JOIN grade g ON g.notebook_id = sn.id
		  WHERE a.name = ?
		  GROUP BY sa.id
		  ORDER BY sa.student_id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate submissions for %s: %w", name, err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub := Submission{MaxScore: maxScore}
		if err := rows.Scan(&sub.StudentID, &sub.FirstName, &sub.LastName, &sub.Score); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ClearAssociations creates the lookup table if needed and deletes all
// rows for the assignment. The primary key guarantees at most one
// participant token per student and assignment.
func (s *Store) ClearAssociations(assignment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS moodle_part_student (
		   assignment_id  TEXT NOT NULL,
		   student_id     TEXT NOT NULL,
		   participant_id TEXT NOT NULL,
		   PRIMARY KEY (assignment_id, student_id)
		 )`)
	if err != nil {
		return fmt.Errorf("failed to create participant lookup table: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM moodle_part_student WHERE assignment_id = ?`, assignment); err != nil {
		return fmt.Errorf("failed to clear participant lookup for %s: %w", assignment, err)
	}
	return nil
}

// AddAssociation records one (assignment, student, participant) row,
// replacing any previous token for the same student and assignment.
func (s *Store) AddAssociation(a Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO moodle_part_student (assignment_id, student_id, participant_id)
		 VALUES (?, ?, ?)`,
		a.AssignmentID, a.StudentID, a.ParticipantToken)
	if err != nil {
		return fmt.Errorf("failed to record association for %s: %w", a.StudentID, err)
	}
	return nil
}

// Associations returns the studentID -> participant token lookup for an
// assignment. A missing lookup table yields an empty map rather than an
// error, because no relocation run has happened yet.
func (s *Store) Associations(assignment string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lookup := make(map[string]string)

	var tableName string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'moodle_part_student'`).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return lookup, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect participant lookup table: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT student_id, participant_id FROM moodle_part_student WHERE assignment_id = ?`, assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to query participant lookup for %s: %w", assignment, err)
	}
	defer rows.Close()

	for rows.Next() {
		var studentID, token string
		if err := rows.Scan(&studentID, &token); err != nil {
			return nil, fmt.Errorf("failed to scan association row: %w", err)
		}
		lookup[studentID] = token
	}
	return lookup, rows.Err()
}
