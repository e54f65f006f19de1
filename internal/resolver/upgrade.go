package resolver

import (
	"regexp"
	"strconv"
	"strings"
)

// ebaySizeToken matches the s-l<N> size segment in eBay image paths,
// e.g. https://i.ebayimg.com/images/g/abc/s-l500.jpg.
var ebaySizeToken = regexp.MustCompile(`(/s-l)(\d{2,4})(\.[A-Za-z]+)`)

const ebayMaxSize = 1600

// UpgradeResolution rewrites known size hints to their largest variant.
func UpgradeResolution(rawURL string) string {
	return ebaySizeToken.ReplaceAllStringFunc(rawURL, func(match string) string {
		parts := ebaySizeToken.FindStringSubmatch(match)
		size, err := strconv.Atoi(parts[2])
		if err != nil || size >= ebayMaxSize {
			return match
		}
		return parts[1] + strconv.Itoa(ebayMaxSize) + parts[3]
	})
}

// BestFromSrcSet picks the widest (or highest density) candidate of a srcset
// attribute. Entries without a descriptor count as 1x.
func BestFromSrcSet(srcset string) string {
	var (
		best      string
		bestWidth float64
		bestX     float64
	)
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		candidate := fields[0]
		width, density := 0.0, 1.0
		if len(fields) > 1 {
			descriptor := strings.ToLower(fields[1])
			switch {
			case strings.HasSuffix(descriptor, "w"):
				if v, err := strconv.ParseFloat(strings.TrimSuffix(descriptor, "w"), 64); err == nil {
					width = v
				}
			case strings.HasSuffix(descriptor, "x"):
				if v, err := strconv.ParseFloat(strings.TrimSuffix(descriptor, "x"), 64); err == nil {
					density = v
				}
			}
		}
		switch {
		case best == "":
			best, bestWidth, bestX = candidate, width, density
		case width > bestWidth:
			best, bestWidth, bestX = candidate, width, density
		case width == bestWidth && density > bestX:
			best, bestX = candidate, density
		}
	}
	return best
}
