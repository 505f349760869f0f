package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var googleMapsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(www\.)?google\.[a-z]+/maps/place/.+`),
	regexp.MustCompile(`(?i)^https?://maps\.google\.[a-z]+/maps\?.*cid=`),
	regexp.MustCompile(`(?i)^https?://(www\.)?google\.[a-z]+/maps/.*@-?\d+\.?\d*,-?\d+\.?\d*,.*`),
}

var (
	placeNameRe = regexp.MustCompile(`/place/([^/]+)`)
	cidRe       = regexp.MustCompile(`[?&]cid=(\d+)`)
	slugStripRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidateGoogleMapsURL reports whether the URL looks like a Google Maps
// place URL.
func ValidateGoogleMapsURL(u string) bool {
	for _, p := range googleMapsPatterns {
		if p.MatchString(u) {
			return true
		}
	}
	return false
}

// PlaceInfo holds the fields extractable from a Google Maps URL.
type PlaceInfo struct {
	PlaceName string
	PlaceID   string
}

// ExtractPlaceInfo pulls the place name and CID out of a Google Maps URL.
// Missing parts come back empty.
func ExtractPlaceInfo(u string) PlaceInfo {
	var info PlaceInfo

	if m := placeNameRe.FindStringSubmatch(u); m != nil {
		if decoded, err := url.QueryUnescape(strings.ReplaceAll(m[1], "+", " ")); err == nil {
			info.PlaceName = decoded
		} else {
			info.PlaceName = strings.ReplaceAll(m[1], "+", " ")
		}
	}
	if m := cidRe.FindStringSubmatch(u); m != nil {
		info.PlaceID = m[1]
	}
	return info
}

// Slugify lowercases the name and collapses every non-alphanumeric run into
// a single hyphen.
func Slugify(name string) string {
	slug := slugStripRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
