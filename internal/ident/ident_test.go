package ident

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	t.Run("default policy pads to 8 digits", func(t *testing.T) {
		id, err := Default.Format("12345")
		require.NoError(t, err)
		assert.Equal(t, "k00012345", id)
	})

	t.Run("pad zero disables padding", func(t *testing.T) {
		f := Formatter{Prefix: "s", Pad: 0}
		id, err := f.Format("42")
		require.NoError(t, err)
		assert.Equal(t, "s42", id)
	})

	t.Run("empty prefix", func(t *testing.T) {
		f := Formatter{Prefix: "", Pad: 4}
		id, err := f.Format("7")
		require.NoError(t, err)
		assert.Equal(t, "0007", id)
	})

	t.Run("surrounding whitespace tolerated", func(t *testing.T) {
		id, err := Default.Format(" 12345 ")
		require.NoError(t, err)
		assert.Equal(t, "k00012345", id)
	})

	t.Run("non-numeric input fails", func(t *testing.T) {
		_, err := Default.Format("12a45")
		assert.Error(t, err)
	})

	t.Run("negative input fails", func(t *testing.T) {
		_, err := Default.Format("-3")
		assert.Error(t, err)
	})
}

func TestFormatParseRoundTrip(t *testing.T) {
	// Formatting must be injective and reversible for every pad width
	// at least as wide as the number of digits.
	cases := []struct {
		n   int
		pad int
	}{
		{0, 0}, {0, 8}, {1, 1}, {12345, 5}, {12345, 8}, {99999999, 8}, {7, 12},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d pad=%d", tc.n, tc.pad), func(t *testing.T) {
			f := Formatter{Prefix: "k", Pad: tc.pad}
			got, err := f.Parse(f.FormatInt(tc.n))
			require.NoError(t, err)
			assert.Equal(t, tc.n, got)
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("wrong prefix rejected", func(t *testing.T) {
		_, err := Default.Parse("s00012345")
		assert.Error(t, err)
	})

	t.Run("non-numeric suffix rejected", func(t *testing.T) {
		_, err := Default.Parse("k0001x345")
		assert.Error(t, err)
	})
}

func TestFindInPath(t *testing.T) {
	t.Run("moodle archive entry", func(t *testing.T) {
		id, err := Default.FindInPath("A1/Doe John_Participant_77_assignsubmission_file_/submission_k00012345.ipynb")
		require.NoError(t, err)
		assert.Equal(t, "k00012345", id)
	})

	t.Run("case insensitive and short form renormalized", func(t *testing.T) {
		id, err := Default.FindInPath("submission_K12345.ipynb")
		require.NoError(t, err)
		assert.Equal(t, "k00012345", id)
	})

	t.Run("no token", func(t *testing.T) {
		_, err := Default.FindInPath("Participant_77_/notebook.ipynb")
		assert.ErrorIs(t, err, ErrNoStudentID)
	})
}
