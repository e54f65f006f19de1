package harvest

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

const (
	// DefaultExtension is used when neither the content type nor the URL names one.
	DefaultExtension = "jpg"
	// DefaultFolder holds listings whose catalog entry names no folder.
	DefaultFolder = "Unknown"
)

var contentTypeExtensions = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/pjpeg":   "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/avif":    "avif",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
	"image/tiff":    "tiff",
}

var knownExtensions = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"avif": "avif",
	"bmp":  "bmp",
	"svg":  "svg",
	"tif":  "tiff",
	"tiff": "tiff",
}

// ExtensionFor infers a file extension from the response content type, then
// the URL path, then falls back to DefaultExtension.
func ExtensionFor(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := contentTypeExtensions[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if known, ok := knownExtensions[ext]; ok {
			return known
		}
	}
	return DefaultExtension
}

// ObjectPath derives the storage key <folder>/<id>.<ext> for a listing.
func ObjectPath(listing ListingRecord, defaultFolder, ext string) string {
	return ListingKey(listing, defaultFolder) + "." + ext
}

// ListingKey is the storage key of a listing without its extension. Two
// listings with the same key write the same file.
func ListingKey(listing ListingRecord, defaultFolder string) string {
	folder := sanitizeSegment(listing.Folder)
	if folder == "" {
		folder = sanitizeSegment(defaultFolder)
	}
	name := sanitizeSegment(listing.ID)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// sanitizeSegment keeps a label usable as a single path element.
func sanitizeSegment(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	if cleaned == "." || cleaned == ".." {
		return "_"
	}
	return cleaned
}
