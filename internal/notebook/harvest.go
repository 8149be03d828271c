package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Harvester extracts the unlocked code-cell source of notebooks into
// plain .py files for similarity checking.
type Harvester struct {
	Policy MetadataPolicy
}

// HarvestFile reads the notebook at nbPath and writes the source of
// every unlocked code cell to outPath, in original order. Each
// harvested cell is preceded by a delimiter line naming the output
// file and a running cell counter; the counter advances only for
// harvested cells, so it numbers what MOSS actually sees. Returns the
// number of harvested cells.
func (h *Harvester) HarvestFile(nbPath, outPath string) (int, error) {
	data, err := os.ReadFile(nbPath)
	if err != nil {
		return 0, fmt.Errorf("cannot read notebook: %w", err)
	}
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return 0, fmt.Errorf("cannot parse notebook %s: %w", nbPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("cannot create output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("cannot create harvested file: %w", err)
	}
	defer out.Close()

	harvested := 0
	for _, cell := range nb.Cells {
		if cell.CellType != "code" || cell.Source == nil {
			continue
		}
		if cell.Locked(h.Policy) {
			continue
		}
		harvested++
		if _, err := fmt.Fprintf(out, "\n\n# %s-«c:%d»-\n", outPath, harvested); err != nil {
			return harvested, fmt.Errorf("cannot write harvested file: %w", err)
		}
		if _, err := out.WriteString(string(*cell.Source)); err != nil {
			return harvested, fmt.Errorf("cannot write harvested file: %w", err)
		}
		// Blank gap so consecutive cells never concatenate into one
		// statement.
		if _, err := out.WriteString("\n\n\n\n"); err != nil {
			return harvested, fmt.Errorf("cannot write harvested file: %w", err)
		}
	}
	return harvested, out.Close()
}
