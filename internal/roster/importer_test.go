package roster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nbmoodle/internal/gradebook"
	"nbmoodle/internal/ident"
)

// fakeGradebook records upserts and serves lookups from memory.
type fakeGradebook struct {
	students map[string]gradebook.Student
	upserts  int
}

func newFakeGradebook() *fakeGradebook {
	return &fakeGradebook{students: make(map[string]gradebook.Student)}
}

func (f *fakeGradebook) FindStudent(id string) (gradebook.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return gradebook.Student{}, fmt.Errorf("student %s: %w", id, gradebook.ErrNotFound)
	}
	return st, nil
}

func (f *fakeGradebook) UpsertStudent(st gradebook.Student) error {
	f.students[st.ID] = st
	f.upserts++
	return nil
}

func (f *fakeGradebook) FindAssignment(name string) (gradebook.Assignment, error) {
	return gradebook.Assignment{}, errors.New("not implemented")
}

func (f *fakeGradebook) AssignmentSubmissions(name string) ([]gradebook.Submission, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGradebook) ClearAssociations(assignment string) error { return nil }

func (f *fakeGradebook) AddAssociation(a gradebook.Association) error { return nil }

func (f *fakeGradebook) Associations(assignment string) (map[string]string, error) {
	return nil, errors.New("not implemented")
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "participants.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestImportCSV(t *testing.T) {
	log := zap.NewNop()

	t.Run("imports rows and skips header", func(t *testing.T) {
		gb := newFakeGradebook()
		im := &Importer{Gradebook: gb, IDs: ident.Default, Log: log}

		path := writeCSV(t, "First name,Surname,ID,Email\nAnn,Lee,12345,a@x.com\nBo,Chen,67890,b@x.com\n")
		n, err := im.ImportCSV(path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, gb.upserts)

		st, err := gb.FindStudent("k00012345")
		require.NoError(t, err)
		assert.Equal(t, gradebook.Student{
			ID: "k00012345", FirstName: "Ann", LastName: "Lee", Email: "a@x.com",
		}, st)
	})

	t.Run("rerun updates existing students", func(t *testing.T) {
		gb := newFakeGradebook()
		im := &Importer{Gradebook: gb, IDs: ident.Default, Log: log}

		_, err := im.ImportCSV(writeCSV(t, "h,h,h,h\nAnn,Lee,12345,a@x.com\n"))
		require.NoError(t, err)
		_, err = im.ImportCSV(writeCSV(t, "h,h,h,h\nAnn,Lee,12345,new@x.com\n"))
		require.NoError(t, err)

		st, err := gb.FindStudent("k00012345")
		require.NoError(t, err)
		assert.Equal(t, "new@x.com", st.Email)
		assert.Len(t, gb.students, 1)
	})

	t.Run("malformed numeric ID aborts", func(t *testing.T) {
		gb := newFakeGradebook()
		im := &Importer{Gradebook: gb, IDs: ident.Default, Log: log}

		path := writeCSV(t, "h,h,h,h\nAnn,Lee,12345,a@x.com\nBad,Row,12x45,c@x.com\nBo,Chen,67890,b@x.com\n")
		n, err := im.ImportCSV(path)
		assert.Error(t, err)
		// The row before the malformed one was already imported; no
		// rollback happens.
		assert.Equal(t, 1, n)
		assert.Len(t, gb.students, 1)
	})

	t.Run("short row aborts", func(t *testing.T) {
		gb := newFakeGradebook()
		im := &Importer{Gradebook: gb, IDs: ident.Default, Log: log}

		_, err := im.ImportCSV(writeCSV(t, "h,h,h,h\nAnn,Lee,12345\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		im := &Importer{Gradebook: newFakeGradebook(), IDs: ident.Default, Log: log}
		_, err := im.ImportCSV(filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})
}
