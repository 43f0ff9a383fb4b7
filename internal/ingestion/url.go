package ingestion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/cv-ranker/internal/fetch"
	"github.com/jonathan/cv-ranker/internal/logger"
)

var (
	// ErrHTTPRequestFailed is returned when HTTP request fails
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when content extraction fails
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// IngestFromURL fetches a job posting and extracts its text using the
// selectors of the detected job board platform. A nil fetcher fetches
// without caching.
func IngestFromURL(ctx context.Context, fetcher *fetch.CachedFetcher, urlStr string, log *zap.Logger) (string, *Metadata, error) {
	log = logger.OrNop(log)
	if fetcher == nil {
		fetcher = fetch.NewCachedFetcher(nil, nil)
	}

	platform := fetch.DetectPlatform(urlStr)
	log.Debug("fetching job posting", zap.String("url", urlStr), zap.String("platform", string(platform)))

	result, err := fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}

	text, err := fetch.ExtractMainText(result.HTML,
		fetch.PlatformContentSelectors(platform),
		fetch.PlatformNoiseSelectors(platform)...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	log.Debug("extracted job posting",
		zap.Int("html_bytes", len(result.HTML)),
		zap.Int("text_chars", len(text)),
		zap.Bool("from_cache", result.FromCache),
	)

	metadata := NewMetadata(text, urlStr, FormatHTML)
	metadata.Platform = string(platform)
	return text, metadata, nil
}
