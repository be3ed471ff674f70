package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pinbase/internal/ir"
)

// LoadMachineRows reads hierarchical rows from a JSON or YAML file. The
// file holds a list of rows.
func LoadMachineRows(path string) ([]ir.MachineRow, error) {
	var rows []ir.MachineRow
	if err := load(path, &rows); err != nil {
		return nil, fmt.Errorf("load machine rows: %w", err)
	}
	for i := range rows {
		rows[i].Name = CleanText(rows[i].Name)
		rows[i].GroupName = CleanText(rows[i].GroupName)
	}
	return rows, nil
}

// LoadFlatRecords reads flat export records from a JSON or YAML file.
func LoadFlatRecords(path string) ([]ir.FlatRecord, error) {
	var recs []ir.FlatRecord
	if err := load(path, &recs); err != nil {
		return nil, fmt.Errorf("load flat records: %w", err)
	}
	return recs, nil
}

// load decodes by extension: .yaml and .yml are YAML, everything else is
// JSON. Unknown JSON keys are rejected.
func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
