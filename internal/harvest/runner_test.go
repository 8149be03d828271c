package harvest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nbmoodle/internal/notebook"
)

const studentNotebook = `{
  "cells": [
    {"cell_type": "code", "metadata": {"nbgrader": {"locked": true}}, "source": ["import os\n"]},
    {"cell_type": "code", "metadata": {}, "source": ["answer = 42\n"]}
  ]
}`

type fakeService struct {
	baseFiles []string
	files     []string
	sent      bool
}

func (f *fakeService) AddBaseFile(path string) { f.baseFiles = append(f.baseFiles, path) }
func (f *fakeService) AddFile(path string)     { f.files = append(f.files, path) }
func (f *fakeService) Send(ctx context.Context) (string, error) {
	f.sent = true
	return "http://moss.stanford.edu/results/123456789", nil
}

func writeNotebook(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newRunner(courseDir string, svc Service) *Runner {
	return &Runner{
		CourseDir:    courseDir,
		AssignmentID: "A1",
		Extension:    ".ipynb",
		Harvester:    &notebook.Harvester{Policy: notebook.TreatMalformedMetadataAsUnlocked},
		Service:      svc,
		Log:          zap.NewNop(),
	}
}

func TestRun(t *testing.T) {
	t.Run("harvests basefile and submissions", func(t *testing.T) {
		courseDir := t.TempDir()
		writeNotebook(t, filepath.Join(courseDir, "release", "A1", "assignment1.ipynb"), studentNotebook)
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00012345", "A1", "assignment1.ipynb"), studentNotebook)
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00067890", "A1", "assignment1.ipynb"), studentNotebook)
		// A submission for a different assignment must not be swept up.
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00012345", "A2", "assignment2.ipynb"), studentNotebook)

		svc := &fakeService{}
		url, err := newRunner(courseDir, svc).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "http://moss.stanford.edu/results/123456789", url)
		assert.True(t, svc.sent)

		require.Len(t, svc.baseFiles, 1)
		assert.Equal(t, filepath.Join(courseDir, "moss", "basefile", "A1", "assignment1.py"), svc.baseFiles[0])
		assert.Len(t, svc.files, 2)

		// Harvested files carry only the unlocked cell.
		data, err := os.ReadFile(svc.files[0])
		require.NoError(t, err)
		assert.Contains(t, string(data), "answer = 42")
		assert.NotContains(t, string(data), "import os")
	})

	t.Run("missing release notebook", func(t *testing.T) {
		courseDir := t.TempDir()
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00012345", "A1", "assignment1.ipynb"), studentNotebook)

		_, err := newRunner(courseDir, &fakeService{}).Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("no submissions", func(t *testing.T) {
		courseDir := t.TempDir()
		writeNotebook(t, filepath.Join(courseDir, "release", "A1", "assignment1.ipynb"), studentNotebook)
		require.NoError(t, os.MkdirAll(filepath.Join(courseDir, "submitted"), 0755))

		svc := &fakeService{}
		_, err := newRunner(courseDir, svc).Run(context.Background())
		assert.Error(t, err)
		assert.False(t, svc.sent)
	})

	t.Run("unparseable submission skipped", func(t *testing.T) {
		courseDir := t.TempDir()
		writeNotebook(t, filepath.Join(courseDir, "release", "A1", "assignment1.ipynb"), studentNotebook)
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00012345", "A1", "assignment1.ipynb"), "not json")
		writeNotebook(t, filepath.Join(courseDir, "submitted", "k00067890", "A1", "assignment1.ipynb"), studentNotebook)

		svc := &fakeService{}
		_, err := newRunner(courseDir, svc).Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, svc.files, 1)
	})
}
