// Package notebook reads Jupyter notebook documents and harvests the
// source of student-editable code cells into plain .py files, the form
// the MOSS similarity checker compares.
package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notebook is the slice of the .ipynb document model we need: the
// ordered cell list.
type Notebook struct {
	Cells []Cell `json:"cells"`
}

// Cell is one notebook cell. Source is nil when the document carries
// no source field for the cell.
type Cell struct {
	CellType string       `json:"cell_type"`
	Source   *SourceText  `json:"source"`
	Metadata CellMetadata `json:"metadata"`
}

// CellMetadata keeps the nbgrader block raw: its shape is not under
// our control and malformed blocks must not fail the whole document.
type CellMetadata struct {
	Nbgrader json.RawMessage `json:"nbgrader"`
}

// SourceText accepts both source encodings the notebook format allows:
// a single string or an array of line strings (each already carrying
// its newline).
type SourceText string

func (s *SourceText) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = SourceText(single)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("cell source is neither string nor string array: %w", err)
	}
	*s = SourceText(strings.Join(lines, ""))
	return nil
}

// MetadataPolicy decides how cells with missing or malformed nbgrader
// metadata are treated when determining lock status.
type MetadataPolicy int

const (
	// TreatMalformedMetadataAsUnlocked harvests any cell whose
	// nbgrader metadata block is absent or not well-formed. Cells that
	// students add themselves carry no nbgrader block at all, and
	// those are exactly the cells a plagiarism check must see.
	// The cost: a genuinely malformed instructor cell is silently
	// harvested too.
	TreatMalformedMetadataAsUnlocked MetadataPolicy = iota

	// TreatMalformedMetadataAsLocked skips such cells instead.
	TreatMalformedMetadataAsLocked
)

// Locked reports whether the cell is marked instructor-locked in its
// nbgrader metadata. The policy governs cells where that cannot be
// determined.
func (c Cell) Locked(policy MetadataPolicy) bool {
	malformed := policy == TreatMalformedMetadataAsLocked
	if c.Metadata.Nbgrader == nil {
		return malformed
	}
	var meta struct {
		Locked *bool `json:"locked"`
	}
	if err := json.Unmarshal(c.Metadata.Nbgrader, &meta); err != nil || meta.Locked == nil {
		return malformed
	}
	return *meta.Locked
}
