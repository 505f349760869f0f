package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key prefixes. Keys are built deterministically from a purpose prefix plus
// the participating identifiers so the same query always lands on the same
// entry.
const (
	PrefixReviews            = "reviews"
	PrefixReviewSummaries    = "reviews:summary"
	PrefixLocationStats      = "location:stats"
	PrefixLocationSentiments = "location:sentiments"
	PrefixInsightContext     = "insight:ctx"
	PrefixInsightSummary     = "insight:sum"
)

// TTL tiers by data volatility.
const (
	TTLReviews        = 24 * time.Hour
	TTLSummaries      = 12 * time.Hour
	TTLSentiments     = 12 * time.Hour
	TTLStats          = 6 * time.Hour
	TTLInsightSummary = time.Hour
	TTLShort          = 30 * time.Minute
)

// Key joins a prefix and identifiers with ":".
func Key(prefix string, identifiers ...string) string {
	return prefix + ":" + strings.Join(identifiers, ":")
}

// LocationReviewsKey is the cache key for a location's full review list.
func LocationReviewsKey(locationID string) string {
	return Key(PrefixReviews, locationID)
}

// LocationSummariesKey is the cache key for a location's analysis results.
func LocationSummariesKey(locationID string) string {
	return Key(PrefixReviewSummaries, locationID)
}

// LocationStatsKey is the cache key for a location's statistics snapshot.
func LocationStatsKey(locationID string) string {
	return Key(PrefixLocationStats, locationID)
}

// LocationSentimentsKey is the cache key for a location's sentiment data.
func LocationSentimentsKey(locationID string) string {
	return Key(PrefixLocationSentiments, locationID)
}

// BuildContextKey builds the aggregation-context key for a user over zero
// or more locations. Location ids are sorted so [B,A] and [A,B] resolve to
// the same entry.
func BuildContextKey(userID string, locationIDs []string) string {
	return buildScopedKey(PrefixInsightContext, userID, locationIDs)
}

// BuildSummaryKey builds the combined-summary key for a user over zero or
// more locations, with the same ordering guarantee as BuildContextKey.
func BuildSummaryKey(userID string, locationIDs []string) string {
	return buildScopedKey(PrefixInsightSummary, userID, locationIDs)
}

func buildScopedKey(prefix, userID string, locationIDs []string) string {
	switch len(locationIDs) {
	case 0:
		return fmt.Sprintf("%s:%s:global", prefix, userID)
	case 1:
		return fmt.Sprintf("%s:%s:loc:%s", prefix, userID, locationIDs[0])
	default:
		sorted := make([]string, len(locationIDs))
		copy(sorted, locationIDs)
		sort.Strings(sorted)
		return fmt.Sprintf("%s:%s:locs:%s", prefix, userID, strings.Join(sorted, "+"))
	}
}

// locationPatterns returns the glob patterns covering every key that could
// have been derived from a location's data: its single-location keys, any
// multi-location context/summary key containing it, and the per-user
// global keys.
func locationPatterns(locationID string) []string {
	return []string{
		LocationReviewsKey(locationID),
		LocationSummariesKey(locationID),
		LocationStatsKey(locationID),
		LocationSentimentsKey(locationID),
		PrefixInsightContext + ":*" + locationID + "*",
		PrefixInsightSummary + ":*" + locationID + "*",
		PrefixInsightContext + ":*:global",
		PrefixInsightSummary + ":*:global",
	}
}
