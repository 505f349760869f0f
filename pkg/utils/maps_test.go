package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateGoogleMapsURL(t *testing.T) {
	valid := []string{
		"https://www.google.com/maps/place/Blue+Bottle+Coffee/@37.77,-122.42,17z",
		"https://google.co.id/maps/place/Kopi+Kenangan",
		"https://maps.google.com/maps?cid=123456789",
		"https://www.google.com/maps/@37.77,-122.42,15z",
	}
	for _, u := range valid {
		assert.True(t, ValidateGoogleMapsURL(u), u)
	}

	invalid := []string{
		"",
		"not a url",
		"https://example.com/maps/place/foo",
		"https://www.google.com/search?q=coffee",
	}
	for _, u := range invalid {
		assert.False(t, ValidateGoogleMapsURL(u), u)
	}
}

func TestExtractPlaceInfo(t *testing.T) {
	info := ExtractPlaceInfo("https://www.google.com/maps/place/Blue+Bottle+Coffee/@37.77,-122.42,17z")
	assert.Equal(t, "Blue Bottle Coffee", info.PlaceName)
	assert.Empty(t, info.PlaceID)

	info = ExtractPlaceInfo("https://maps.google.com/maps?cid=123456789")
	assert.Equal(t, "123456789", info.PlaceID)
	assert.Empty(t, info.PlaceName)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "blue-bottle-coffee", Slugify("Blue Bottle Coffee"))
	assert.Equal(t, "caf-del-mar", Slugify("  Café del Mar!  "))
	assert.Equal(t, "a-b", Slugify("A---B"))
}
