package dto

// RawReviewRecord is one review as emitted by the scraper process. The
// scraper writes a JSON array of these to its output file.
type RawReviewRecord struct {
	DataReviewID      string `json:"data_review_id,omitempty"`
	AuthorName        string `json:"reviewer_name"`
	AuthorPhotoURL    string `json:"reviewer_profile_image,omitempty"`
	AuthorReviewCount int    `json:"reviewer_reviews_count,omitempty"`
	Rating            int    `json:"rating"`
	Text              string `json:"review_text"`
	ReviewDate        string `json:"review_date"`
	Likes             int    `json:"review_likes,omitempty"`
	PlaceName         string `json:"place_name,omitempty"`
	PlaceURL          string `json:"place_url,omitempty"`
}

// ScrapeResult is the outcome of one scraper run.
type ScrapeResult struct {
	Reviews   []RawReviewRecord
	PlaceName string
	Address   string
}

// ScrapeProgress is a progress update parsed from the scraper's stdout.
type ScrapeProgress struct {
	Collected int
	Target    int
}

// ScrapeJobMessage is the stream payload that triggers a pipeline run.
type ScrapeJobMessage struct {
	JobID      string `json:"job_id"`
	LocationID string `json:"location_id"`
	SourceURL  string `json:"source_url"`
	MaxItems   int    `json:"max_items"`
}
