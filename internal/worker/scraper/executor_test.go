package scraper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/logger"
)

// fakeScraper stands in for the Python process. It prints progress lines and
// writes a JSON review array to the file following the -O flag.
const fakeScraper = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-O" ]; then out="$a"; fi
  prev="$a"
done
echo "Progress: 1/2 reviews"
echo "Progress: 2/2 reviews"
echo "Scraping completed"
cat > "$out" <<'JSON'
[
  {"reviewer_name": "Alice", "rating": 5, "review_text": "Great coffee", "review_date": "2 weeks ago"},
  {"reviewer_name": "Bob", "rating": 2, "review_text": "Slow service", "review_date": "a month ago"}
]
JSON
`

const failingScraper = `#!/bin/sh
echo "boom" >&2
exit 3
`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scraper.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func newTestExecutor(t *testing.T, script string) (*executor, string) {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)

	tempDir := t.TempDir()
	cfg := &config.Config{}
	cfg.Scraper.PythonBin = script
	cfg.Scraper.TempDir = tempDir
	cfg.Scraper.Timeout = 30 * time.Second

	return &executor{cfg: cfg, logger: log}, tempDir
}

func TestExecutor_Run(t *testing.T) {
	e, tempDir := newTestExecutor(t, writeScript(t, fakeScraper))

	var updates []dto.ScrapeProgress
	result, err := e.Run(context.Background(), "https://maps.google.com/?cid=1", 2, func(p dto.ScrapeProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)

	require.Len(t, result.Reviews, 2)
	assert.Equal(t, "Alice", result.Reviews[0].AuthorName)
	assert.Equal(t, 5, result.Reviews[0].Rating)
	assert.Equal(t, "a month ago", result.Reviews[1].ReviewDate)

	require.Len(t, updates, 2)
	assert.Equal(t, dto.ScrapeProgress{Collected: 1, Target: 2}, updates[0])
	assert.Equal(t, dto.ScrapeProgress{Collected: 2, Target: 2}, updates[1])

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp output file should be cleaned up")
}

func TestExecutor_RunProcessFailure(t *testing.T) {
	e, tempDir := newTestExecutor(t, writeScript(t, failingScraper))

	_, err := e.Run(context.Background(), "https://maps.google.com/?cid=1", 10, nil)
	require.Error(t, err)

	var scrapeErr *ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, 3, scrapeErr.ExitCode)
	assert.Contains(t, scrapeErr.Stderr, "boom")
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "boom")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp output file should be cleaned up on failure")
}

func TestExecutor_StderrTailBounded(t *testing.T) {
	script := `#!/bin/sh
i=0
while [ $i -lt 200 ]; do
  echo "noise line $i with some padding to grow the buffer quickly" >&2
  i=$((i+1))
done
echo "final failure cause" >&2
exit 1
`
	e, _ := newTestExecutor(t, writeScript(t, script))

	_, err := e.Run(context.Background(), "https://maps.google.com/?cid=1", 10, nil)
	require.Error(t, err)

	var scrapeErr *ScrapeError
	require.ErrorAs(t, err, &scrapeErr)
	assert.Equal(t, 1, scrapeErr.ExitCode)
	assert.LessOrEqual(t, len(scrapeErr.Stderr), stderrTailLimit)
	assert.Contains(t, scrapeErr.Stderr, "final failure cause", "the tail keeps the last lines")
}

func TestExecutor_RunTimeout(t *testing.T) {
	e, _ := newTestExecutor(t, writeScript(t, "#!/bin/sh\nsleep 30\n"))
	e.cfg.Scraper.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err := e.Run(context.Background(), "https://maps.google.com/?cid=1", 10, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
