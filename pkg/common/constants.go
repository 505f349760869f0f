package common

const (
	RedisStreamScrapeJobs = "review.scrape.jobs"

	RedisStreamGroup    = "worker-group"
	RedisStreamConsumer = "worker-consumer"

	RedisStreamMaxLen = 1000
)

// Pipeline stage names reported through job progress records.
const (
	StageQueued       = "queued"
	StageScraping     = "scraping"
	StageTransforming = "transforming"
	StageAnalyzing    = "analyzing"
	StagePersisting   = "persisting"
	StageCompleted    = "completed"
)
