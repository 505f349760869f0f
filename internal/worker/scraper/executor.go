package scraper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"review-insights/internal/worker/config"
	"review-insights/internal/worker/dto"
	"review-insights/pkg/logger"

	"github.com/google/uuid"
)

var progressRe = regexp.MustCompile(`(?i)Progress: (\d+)/(\d+) reviews`)

// stderrTailLimit bounds how much captured stderr a ScrapeError carries.
const stderrTailLimit = 2048

// ScrapeError reports a scraper process failure with the exit code and the
// tail of the process's stderr, so the job's failure reason says what the
// scraper actually printed.
type ScrapeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ScrapeError) Error() string {
	msg := fmt.Sprintf("scraper process failed (exit code %d)", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

func stderrTail(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}

// Executor runs the external review scraper and collects its output.
type Executor interface {
	Run(ctx context.Context, url string, maxReviews int, onProgress func(dto.ScrapeProgress)) (*dto.ScrapeResult, error)
}

// NewExecutor creates an Executor that shells out to the Python scraper.
func NewExecutor(cfg *config.Config, log *logger.Logger) Executor {
	return &executor{cfg: cfg, logger: log}
}

type executor struct {
	cfg    *config.Config
	logger *logger.Logger
}

// Run executes one scrape. Progress lines on the scraper's stdout are parsed
// and forwarded through onProgress; the callback must not block. The
// temporary output file is removed on success and on every failure path.
func (e *executor) Run(ctx context.Context, url string, maxReviews int, onProgress func(dto.ScrapeProgress)) (*dto.ScrapeResult, error) {
	if err := os.MkdirAll(e.cfg.Scraper.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	outputFile := filepath.Join(e.cfg.Scraper.TempDir,
		fmt.Sprintf("scraper_output_%d_%s.json", time.Now().UnixMilli(), uuid.NewString()[:8]))
	defer e.cleanupTempFile(outputFile)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Scraper.Timeout)
	defer cancel()

	args := []string{
		"-m", "scrapy", "crawl", "maps_reviews",
		"-a", "url=" + url,
		"-a", "max_reviews=" + strconv.Itoa(maxReviews),
		"-O", outputFile,
	}

	cmd := exec.CommandContext(ctx, e.cfg.Scraper.PythonBin, args...)
	cmd.Dir = e.cfg.Scraper.WorkDir
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	e.logger.Info("Starting scraper process",
		logger.StringField("url", url),
		logger.IntField("max_reviews", maxReviews),
		logger.StringField("output_file", outputFile))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scraper process: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		e.logger.Debug("scraper output", logger.StringField("line", line))

		m := progressRe.FindStringSubmatch(line)
		if m == nil || onProgress == nil {
			continue
		}
		collected, _ := strconv.Atoi(m[1])
		target, _ := strconv.Atoi(m[2])
		onProgress(dto.ScrapeProgress{Collected: collected, Target: target})
	}

	if err := cmd.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ScrapeError{ExitCode: exitCode, Stderr: stderrTail(&stderr), Err: err}
	}

	result, err := e.readOutput(outputFile)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Scraper process finished",
		logger.StringField("url", url),
		logger.IntField("reviews_scraped", len(result.Reviews)))

	return result, nil
}

func (e *executor) readOutput(outputFile string) (*dto.ScrapeResult, error) {
	raw, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read scraper output: %w", err)
	}

	// The scraper emits either a bare JSON array of reviews or an object
	// with a 'reviews' field plus place metadata.
	var reviews []dto.RawReviewRecord
	if err := json.Unmarshal(raw, &reviews); err == nil {
		return &dto.ScrapeResult{Reviews: reviews}, nil
	}

	var wrapped struct {
		Reviews   []dto.RawReviewRecord `json:"reviews"`
		PlaceName string                `json:"place_name"`
		Address   string                `json:"address"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse scraper output: %w", err)
	}
	return &dto.ScrapeResult{
		Reviews:   wrapped.Reviews,
		PlaceName: wrapped.PlaceName,
		Address:   wrapped.Address,
	}, nil
}

func (e *executor) cleanupTempFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("Failed to cleanup temp file", logger.StringField("path", path), logger.ErrorField(err))
	}
}
