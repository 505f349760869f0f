package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"review-insights/internal/entity"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/utils"
)

// StableReviewID returns the identity used to deduplicate a review across
// scrape runs. The source-provided id wins when present; otherwise the id is
// derived from fields that do not change between runs.
func StableReviewID(raw dto.RawReviewRecord, placeURL string) string {
	if raw.DataReviewID != "" {
		return raw.DataReviewID
	}

	text := raw.Text
	if len(text) > 50 {
		text = text[:50]
	}
	unique := fmt.Sprintf("%s|%s|%s|%d|%s", placeURL, raw.AuthorName, raw.ReviewDate, raw.Rating, text)
	sum := sha256.Sum256([]byte(unique))
	return "gmr_" + hex.EncodeToString(sum[:])[:24]
}

// TransformReviews converts raw scraper records into Review entities,
// dropping duplicates within the batch. Relative dates like "3 weeks ago"
// are resolved against now; unparseable dates fall back to now.
func TransformReviews(records []dto.RawReviewRecord, locationID, placeURL string, now time.Time) []entity.Review {
	seen := make(map[string]struct{}, len(records))
	reviews := make([]entity.Review, 0, len(records))

	for _, raw := range records {
		id := StableReviewID(raw, placeURL)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		author := raw.AuthorName
		if author == "" {
			author = "Anonymous"
		}

		sourceURL := raw.PlaceURL
		if sourceURL == "" {
			sourceURL = placeURL
		}

		reviews = append(reviews, entity.Review{
			LocationID:        locationID,
			ReviewID:          id,
			AuthorName:        utils.CleanToValidUTF8(author),
			AuthorPhotoURL:    raw.AuthorPhotoURL,
			AuthorReviewCount: raw.AuthorReviewCount,
			Rating:            raw.Rating,
			Text:              utils.CleanToValidUTF8(raw.Text),
			PublishedAt:       utils.ParseReviewDate(raw.ReviewDate, now),
			ScrapedAt:         now,
			SourceURL:         sourceURL,
			Likes:             raw.Likes,
		})
	}

	return reviews
}
