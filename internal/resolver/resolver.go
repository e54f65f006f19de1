// Package resolver picks the primary product image of a listing page by
// running an ordered chain of strategies until one yields an absolute URL.
package resolver

import (
	"fmt"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// DefaultMinDimension filters sprites and tracking pixels out of the largest-image fallback.
const DefaultMinDimension = 100

// Resolver applies strategies in priority order.
type Resolver struct {
	strategies []Strategy
}

// New builds a resolver from an explicit strategy order.
func New(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// NewDefault returns meta tags, then hero image, then largest image.
func NewDefault(minDimension int) *Resolver {
	return New(
		NewMetaTagStrategy(),
		NewHeroImageStrategy(),
		NewLargestImageStrategy(minDimension),
	)
}

// Resolve returns the first candidate produced, tagged with its strategy.
func (r *Resolver) Resolve(page harvest.Page) (harvest.ResolvedImage, error) {
	doc, err := NewDocument(page)
	if err != nil {
		return harvest.ResolvedImage{}, fmt.Errorf("prepare document: %w", err)
	}
	tried := make([]string, 0, len(r.strategies))
	for _, strategy := range r.strategies {
		tried = append(tried, strategy.Name())
		if candidate, ok := strategy.Attempt(doc); ok {
			return harvest.ResolvedImage{URL: candidate, Strategy: strategy.Name()}, nil
		}
	}
	return harvest.ResolvedImage{}, &harvest.NoImageFoundError{URL: page.BaseURL(), Tried: tried}
}
