package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stellenberg/opsglass/pkg/model"
)

// SaveRecordsCSV writes a drill-down result set to path as UTF-8 CSV, one
// record per row, with a header line taken from the record field labels.
func SaveRecordsCSV(path string, result model.DrillDownResult) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return writeRecordsCSV(file, result)
}

func writeRecordsCSV(w io.Writer, result model.DrillDownResult) error {
	cw := csv.NewWriter(w)

	var header []string
	if len(result.Records) > 0 {
		for _, f := range result.Records[0].Fields() {
			header = append(header, f.Label)
		}
	} else {
		for _, f := range (model.WorkRecord{}).Fields() {
			header = append(header, f.Label)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range result.Records {
		var row []string
		for _, f := range rec.Fields() {
			row = append(row, f.Value)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
