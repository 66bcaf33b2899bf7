package mapping

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ReportFileName is the file name used for the preflight summary document.
const ReportFileName = "mapping-preflight.json"

// WriteReport serializes the report to the designated summary location under
// dir, plus a duplicate under a unit/ subpath.
func WriteReport(dir string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize preflight report: %w", err)
	}
	data = append(data, '\n')

	for _, target := range []string{dir, filepath.Join(dir, "unit")} {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", target, err)
		}
		path := filepath.Join(target, ReportFileName)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write preflight report %s: %w", path, err)
		}
	}
	return nil
}
