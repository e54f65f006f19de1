// Package harvest defines the listing image pipeline and the types shared by its stages.
package harvest

import (
	"encoding/json"
	"time"
)

// ListingRecord is one catalog entry. Only URL and ID drive the pipeline;
// everything else passes through untouched.
type ListingRecord struct {
	URL    string                     `json:"ebay_url"`
	ID     string                     `json:"id"`
	Folder string                     `json:"folder,omitempty"`
	Title  string                     `json:"title,omitempty"`
	Extra  map[string]json.RawMessage `json:"-"`
}

// ImageInfo describes an <img> element as the browser saw it.
type ImageInfo struct {
	Src           string `json:"src"`
	SrcSet        string `json:"srcset"`
	NaturalWidth  int    `json:"width"`
	NaturalHeight int    `json:"height"`
}

// Area returns the intrinsic pixel area of the image.
func (i ImageInfo) Area() int {
	return i.NaturalWidth * i.NaturalHeight
}

// Page is the snapshot of a loaded listing page handed to the resolver.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	HTML         []byte
	Images       []ImageInfo
	UsedHeadless bool
	Duration     time.Duration
}

// BaseURL returns the URL relative references should be resolved against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// ResolvedImage is the winning candidate for a page.
type ResolvedImage struct {
	URL      string
	Strategy string
}

// Asset holds downloaded image bytes.
type Asset struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// ResultRecord is one summary entry. It exists only for listings whose image
// was written to storage.
type ResultRecord struct {
	ID        string `json:"id"`
	URL       string `json:"ebay_url"`
	SavedPath string `json:"saved_path"`
	ImageURL  string `json:"resolved_image_url"`
}

// StoredResult is the row persisted to the optional results store.
type StoredResult struct {
	ResultRecord
	Strategy    string
	SHA256      string
	Bytes       int
	RunID       string
	HarvestedAt time.Time
}

// Outcome labels used for per-item accounting.
const (
	OutcomeSaved           = "saved"
	OutcomeSkippedInput    = "skipped_input"
	OutcomeNavigationError = "navigation_error"
	OutcomeBlocked         = "blocked"
	OutcomeNoImage         = "no_image"
	OutcomeDownloadError   = "download_error"
	OutcomeWriteError      = "write_error"
	OutcomeCanceled        = "canceled"
	OutcomeFailed          = "failed"
)
