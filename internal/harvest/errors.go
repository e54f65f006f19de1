package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// MalformedInputError reports a catalog that cannot be used. Index is -1 when
// the document as a whole is unusable.
type MalformedInputError struct {
	Path   string
	Index  int
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed input %s", e.Path)
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s entry %d", msg, e.Index)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// NavigationError covers timeouts, transport failures and HTTP error statuses
// while loading a listing page.
type NavigationError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NavigationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("navigate %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help.
func (e *NavigationError) Permanent() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// BlockedError means the page looked like a bot challenge instead of a listing.
type BlockedError struct {
	URL    string
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked at %s: %s", e.URL, e.Reason)
}

// Permanent reports whether retrying cannot help.
func (e *BlockedError) Permanent() bool { return true }

// NoImageFoundError means every resolver strategy came up empty.
type NoImageFoundError struct {
	URL   string
	Tried []string
}

func (e *NoImageFoundError) Error() string {
	return fmt.Sprintf("no image found on %s (tried %v)", e.URL, e.Tried)
}

// Permanent reports whether retrying cannot help.
func (e *NoImageFoundError) Permanent() bool { return true }

// DownloadError reports a failed image download.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("download %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help. Client errors other than
// timeouts and throttling will not change on a second attempt.
func (e *DownloadError) Permanent() bool {
	if e.StatusCode < 400 || e.StatusCode >= 500 {
		return false
	}
	return e.StatusCode != http.StatusRequestTimeout && e.StatusCode != http.StatusTooManyRequests
}

// WriteError reports a failed image write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReportWriteError is fatal: the summary could not be written.
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	return fmt.Sprintf("write summary %s: %v", e.Path, e.Err)
}

func (e *ReportWriteError) Unwrap() error { return e.Err }

// Outcome maps a per-item error onto its accounting label.
func Outcome(err error) string {
	var (
		navErr      *NavigationError
		blockedErr  *BlockedError
		noImageErr  *NoImageFoundError
		downloadErr *DownloadError
		writeErr    *WriteError
	)
	switch {
	case err == nil:
		return OutcomeSaved
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.As(err, &blockedErr):
		return OutcomeBlocked
	case errors.As(err, &navErr):
		return OutcomeNavigationError
	case errors.As(err, &noImageErr):
		return OutcomeNoImage
	case errors.As(err, &downloadErr):
		return OutcomeDownloadError
	case errors.As(err, &writeErr):
		return OutcomeWriteError
	default:
		return OutcomeFailed
	}
}
