// Package detector recognizes bot-challenge pages served in place of listings.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// Heuristic flags challenge pages using text markers, URL markers and
// challenge widgets. It is best effort: a clean result does not prove the
// page is a real listing.
type Heuristic struct {
	bodyMarkers [][]byte
	urlMarkers  []string
	selectors   []string
}

var defaultBodyMarkers = []string{
	"pardon our interruption",
	"checking your browser before accessing",
	"please verify you are a human",
	"px-captcha",
	"g-recaptcha",
	"h-captcha",
	"cf-chl-",
}

var defaultURLMarkers = []string{
	"splashui/challenge",
	"splashui/captcha",
	"/captcha",
	"challenges.cloudflare.com",
}

var defaultSelectors = []string{
	"#px-captcha",
	"form#captcha_form",
	"iframe[src*='captcha']",
	"iframe[src*='challenges.cloudflare.com']",
}

// NewHeuristic creates a detector. Extra body markers are added to the built-in set.
func NewHeuristic(extraMarkers ...string) *Heuristic {
	markers := make([][]byte, 0, len(defaultBodyMarkers)+len(extraMarkers))
	for _, m := range append(append([]string(nil), defaultBodyMarkers...), extraMarkers...) {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		markers = append(markers, bytes.ToLower([]byte(m)))
	}
	return &Heuristic{
		bodyMarkers: markers,
		urlMarkers:  defaultURLMarkers,
		selectors:   defaultSelectors,
	}
}

// Detect reports whether the page looks like a challenge, with the matching reason.
func (h *Heuristic) Detect(page harvest.Page) (string, bool) {
	if h == nil {
		return "", false
	}
	finalURL := strings.ToLower(page.FinalURL)
	for _, marker := range h.urlMarkers {
		if strings.Contains(finalURL, marker) {
			return "challenge url " + marker, true
		}
	}
	if len(page.HTML) == 0 {
		return "", false
	}
	lower := bytes.ToLower(page.HTML)
	for _, marker := range h.bodyMarkers {
		if bytes.Contains(lower, marker) {
			return "page marker " + string(marker), true
		}
	}
	return h.challengeWidget(page.HTML)
}

func (h *Heuristic) challengeWidget(body []byte) (string, bool) {
	if len(h.selectors) == 0 {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	for _, sel := range h.selectors {
		if doc.Find(sel).Length() > 0 {
			return "challenge widget " + sel, true
		}
	}
	return "", false
}
