package resolver

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// Document is the parsed view of a page that strategies query.
type Document struct {
	page harvest.Page
	dom  *goquery.Document
	base *url.URL
}

// NewDocument parses the page HTML and works out its base URL, honoring <base href>.
func NewDocument(page harvest.Page) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	base, err := url.Parse(page.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if ref, refErr := url.Parse(strings.TrimSpace(href)); refErr == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &Document{page: page, dom: dom, base: base}, nil
}

// Find runs a CSS selector against the document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Images returns the browser-measured images, if the fetcher captured any.
func (d *Document) Images() []harvest.ImageInfo {
	return d.page.Images
}

// Absolute resolves raw against the document base and accepts only http(s) URLs.
func (d *Document) Absolute(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := ref
	if d.base != nil {
		abs = d.base.ResolveReference(ref)
	}
	switch strings.ToLower(abs.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}
