package layout

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/soundimports/pricelens/internal/domain/content"
)

// Enhancer is the optional AI collaborator consulted for low-confidence
// classifications. Implementations may refine the type/subtype; the
// classifier itself applies the confidence boost and the aiEnhanced tag.
type Enhancer interface {
	Enhance(ctx context.Context, desc Descriptor, doc *content.Document) (Descriptor, error)
}

// ErrEnhancerThrottled is returned when the rate limiter rejects a call.
// The classifier treats it like any other enhancer failure: skip and move on.
var ErrEnhancerThrottled = errors.New("layout enhancer throttled")

// RateLimitedEnhancer bounds calls to a wrapped enhancer. External text
// analysis is priced per call; a burst of low-confidence documents must not
// fan out into a burst of API calls.
type RateLimitedEnhancer struct {
	inner   Enhancer
	limiter *rate.Limiter
}

// NewRateLimitedEnhancer wraps inner with a token-bucket limit.
func NewRateLimitedEnhancer(inner Enhancer, perSecond float64, burst int) *RateLimitedEnhancer {
	return &RateLimitedEnhancer{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (e *RateLimitedEnhancer) Enhance(ctx context.Context, desc Descriptor, doc *content.Document) (Descriptor, error) {
	if !e.limiter.Allow() {
		return desc, ErrEnhancerThrottled
	}
	return e.inner.Enhance(ctx, desc, doc)
}
