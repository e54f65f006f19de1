// Package catalog reads the listing catalog a harvest run works through.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

const (
	fieldURL    = "ebay_url"
	fieldID     = "id"
	fieldFolder = "folder"
	fieldTitle  = "title"
)

// Catalog is the usable part of an input file.
type Catalog struct {
	Listings []harvest.ListingRecord
	// Skipped counts entries dropped for missing or invalid fields.
	Skipped int
}

// Load parses a JSON array of listing objects. A document that is not an
// array is rejected as a whole; individual entries lacking ebay_url or id are
// skipped with a warning, as are later entries that would write the same
// <folder>/<id> file. defaultFolder stands in for entries without a folder.
func Load(path, defaultFolder string, logger *zap.Logger) (Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// #nosec G304 -- the catalog path is operator-supplied configuration.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(path, raw, defaultFolder, logger)
}

// Parse decodes catalog bytes. path is only used for error messages.
func Parse(path string, raw []byte, defaultFolder string, logger *zap.Logger) (Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultFolder == "" {
		defaultFolder = harvest.DefaultFolder
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Catalog{}, &harvest.MalformedInputError{Path: path, Index: -1, Reason: "expected a JSON array of objects"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return Catalog{}, &harvest.MalformedInputError{Path: path, Index: -1, Err: err}
	}

	out := Catalog{Listings: make([]harvest.ListingRecord, 0, len(entries))}
	seen := make(map[string]int, len(entries))
	for i, entry := range entries {
		listing, err := decodeEntry(path, i, entry)
		if err != nil {
			out.Skipped++
			logger.Warn("skipping catalog entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		key := harvest.ListingKey(listing, defaultFolder)
		if first, dup := seen[key]; dup {
			out.Skipped++
			logger.Warn("skipping duplicate catalog entry",
				zap.Int("index", i),
				zap.Int("first_index", first),
				zap.String("id", listing.ID),
			)
			continue
		}
		seen[key] = i
		out.Listings = append(out.Listings, listing)
	}
	logger.Info("catalog loaded",
		zap.String("path", path),
		zap.Int("entries", len(entries)),
		zap.Int("listings", len(out.Listings)),
		zap.Int("skipped", out.Skipped),
	)
	return out, nil
}

func decodeEntry(path string, index int, entry json.RawMessage) (harvest.ListingRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return harvest.ListingRecord{}, &harvest.MalformedInputError{Path: path, Index: index, Reason: "entry is not an object"}
	}

	listing := harvest.ListingRecord{Extra: make(map[string]json.RawMessage)}
	var err error
	if listing.URL, err = stringField(fields, fieldURL); err != nil {
		return harvest.ListingRecord{}, &harvest.MalformedInputError{Path: path, Index: index, Reason: fieldURL, Err: err}
	}
	if listing.ID, err = stringField(fields, fieldID); err != nil {
		return harvest.ListingRecord{}, &harvest.MalformedInputError{Path: path, Index: index, Reason: fieldID, Err: err}
	}
	if listing.URL == "" || listing.ID == "" {
		return harvest.ListingRecord{}, &harvest.MalformedInputError{Path: path, Index: index, Reason: "missing ebay_url or id"}
	}
	// Optional fields are best effort; a bad folder falls back to the default.
	listing.Folder, _ = stringField(fields, fieldFolder)
	listing.Title, _ = stringField(fields, fieldTitle)

	for key, value := range fields {
		switch key {
		case fieldURL, fieldID, fieldFolder, fieldTitle:
		default:
			listing.Extra[key] = value
		}
	}
	return listing, nil
}

// stringField reads a string-like value. Numbers are kept as their JSON text
// so numeric ids survive.
func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	value, ok := fields[key]
	if !ok {
		return "", nil
	}
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return "", nil
	}
	switch value[0] {
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", fmt.Errorf("decode %s: %w", key, err)
		}
		return strings.TrimSpace(s), nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			return "", fmt.Errorf("decode %s: %w", key, err)
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("%s must be a string", key)
	}
}
