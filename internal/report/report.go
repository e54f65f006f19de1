// Package report writes the run summary.
package report

import (
	"bytes"
	"encoding/json"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
	"github.com/JakeFAU/listing-image-harvester/internal/storage/local"
)

// Write serializes records as a pretty-printed JSON array and atomically
// replaces path with it. An empty run writes "[]".
func Write(path string, records []harvest.ResultRecord) error {
	if records == nil {
		records = []harvest.ResultRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return &harvest.ReportWriteError{Path: path, Err: err}
	}
	if err := local.WriteFileAtomic(path, &buf); err != nil {
		return &harvest.ReportWriteError{Path: path, Err: err}
	}
	return nil
}
