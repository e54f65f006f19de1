package resolver

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// Strategy tags reported on resolved images.
const (
	StrategyMeta    = "meta"
	StrategyHero    = "hero"
	StrategyLargest = "largest"
)

// Strategy is one heuristic for locating a page's primary image.
type Strategy interface {
	Name() string
	Attempt(doc *Document) (string, bool)
}

type selectorAttr struct {
	selector string
	attr     string
}

// MetaTagStrategy reads image declarations from <meta> and <link> tags.
// Values are returned as declared, without resolution upgrades.
type MetaTagStrategy struct {
	tags []selectorAttr
}

// NewMetaTagStrategy returns the open-graph first meta strategy.
func NewMetaTagStrategy() *MetaTagStrategy {
	return &MetaTagStrategy{tags: []selectorAttr{
		{selector: "meta[property='og:image']", attr: "content"},
		{selector: "meta[property='og:image:secure_url']", attr: "content"},
		{selector: "meta[name='twitter:image']", attr: "content"},
		{selector: "meta[itemprop='image']", attr: "content"},
		{selector: "link[rel='image_src']", attr: "href"},
	}}
}

// Name implements Strategy.
func (s *MetaTagStrategy) Name() string { return StrategyMeta }

// Attempt implements Strategy.
func (s *MetaTagStrategy) Attempt(doc *Document) (string, bool) {
	for _, tag := range s.tags {
		var found string
		doc.Find(tag.selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			value, _ := sel.Attr(tag.attr)
			if abs, ok := doc.Absolute(value); ok {
				found = abs
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// HeroImageStrategy looks for the listing's gallery image by known ids and classes.
type HeroImageStrategy struct {
	selectors []string
}

// NewHeroImageStrategy returns the eBay gallery selectors, oldest layout first.
func NewHeroImageStrategy() *HeroImageStrategy {
	return &HeroImageStrategy{selectors: []string{
		"img#icImg",
		".ux-image-carousel-item.active img",
		".ux-image-carousel-item img",
		"[data-testid='ux-image-carousel'] img",
		".ux-image-magnify__container img",
		"img[itemprop='image']",
	}}
}

// Name implements Strategy.
func (s *HeroImageStrategy) Name() string { return StrategyHero }

// Attempt implements Strategy.
func (s *HeroImageStrategy) Attempt(doc *Document) (string, bool) {
	for _, selector := range s.selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if candidate, ok := heroCandidate(doc, sel); ok {
				found = candidate
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// heroCandidate prefers the zoom source and srcset over the displayed src,
// since those carry the larger renditions.
func heroCandidate(doc *Document, sel *goquery.Selection) (string, bool) {
	if zoom, ok := sel.Attr("data-zoom-src"); ok {
		if abs, ok := doc.Absolute(zoom); ok {
			return UpgradeResolution(abs), true
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if srcset, ok := sel.Attr(attr); ok {
			if abs, ok := doc.Absolute(BestFromSrcSet(srcset)); ok {
				return UpgradeResolution(abs), true
			}
		}
	}
	for _, attr := range []string{"src", "data-src"} {
		if src, ok := sel.Attr(attr); ok {
			if abs, ok := doc.Absolute(src); ok {
				return UpgradeResolution(abs), true
			}
		}
	}
	return "", false
}

// LargestImageStrategy falls back to the biggest image on the page. It uses
// browser-measured natural sizes when available and declared width/height
// attributes otherwise.
type LargestImageStrategy struct {
	minDimension int
}

// NewLargestImageStrategy ignores images narrower or shorter than minDimension.
func NewLargestImageStrategy(minDimension int) *LargestImageStrategy {
	if minDimension < 0 {
		minDimension = 0
	}
	return &LargestImageStrategy{minDimension: minDimension}
}

// Name implements Strategy.
func (s *LargestImageStrategy) Name() string { return StrategyLargest }

// Attempt implements Strategy.
func (s *LargestImageStrategy) Attempt(doc *Document) (string, bool) {
	images := doc.Images()
	if len(images) == 0 {
		images = declaredImages(doc)
	}

	candidates := make([]harvest.ImageInfo, 0, len(images))
	for _, img := range images {
		if img.NaturalWidth < s.minDimension || img.NaturalHeight < s.minDimension || img.Area() == 0 {
			continue
		}
		candidates = append(candidates, img)
	}
	// Stable so document order breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Area() > candidates[j].Area()
	})

	for _, img := range candidates {
		raw := img.Src
		if img.SrcSet != "" {
			if best := BestFromSrcSet(img.SrcSet); best != "" {
				raw = best
			}
		}
		if abs, ok := doc.Absolute(raw); ok {
			return UpgradeResolution(abs), true
		}
		if abs, ok := doc.Absolute(img.Src); ok {
			return UpgradeResolution(abs), true
		}
	}
	return "", false
}

func declaredImages(doc *Document) []harvest.ImageInfo {
	var images []harvest.ImageInfo
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" {
			src, _ = sel.Attr("data-src")
		}
		srcset, _ := sel.Attr("srcset")
		images = append(images, harvest.ImageInfo{
			Src:           src,
			SrcSet:        srcset,
			NaturalWidth:  intAttr(sel, "width"),
			NaturalHeight: intAttr(sel, "height"),
		})
	})
	return images
}

func intAttr(sel *goquery.Selection, name string) int {
	raw, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
