package catalog

import (
	"context"
	"strings"
)

type regionKey struct{}

// WithRegion returns a context whose watch-availability lookups report the
// given ISO 3166-1 region instead of the client's configured one. A blank
// region leaves ctx unchanged.
func WithRegion(ctx context.Context, region string) context.Context {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return ctx
	}
	return context.WithValue(ctx, regionKey{}, region)
}

// RegionFrom returns the region set by WithRegion, or fallback
func RegionFrom(ctx context.Context, fallback string) string {
	if region, ok := ctx.Value(regionKey{}).(string); ok {
		return region
	}
	return fallback
}
