// Package imagegen turns a successful generation into saved artifacts.
//
// downloader.go fetches generated images from the temporary URLs returned
// by the image service. Each URL is single use, so nothing is cached; the
// publisher downloads an image once and derives every artifact from it.
package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Downloader fetches image bytes over HTTP.
//
// Thread Safety: Downloader is safe for concurrent use. Every download
// uses its own request.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is the HTTP client for downloads (optional).
	// If nil, a client with Timeout is created.
	HTTPClient *http.Client

	// Timeout for download operations when HTTPClient is nil.
	// Default: 60 seconds
	Timeout time.Duration

	// MaxBytes rejects larger images.
	// Default: 32 MiB
	MaxBytes int64
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:  60 * time.Second,
		MaxBytes: 32 << 20,
	}
}

// NewDownloader creates a downloader.
//
// Example:
//
//	cfg := imagegen.DefaultDownloaderConfig()
//	cfg.HTTPClient = settings.HTTPClient()
//	downloader, err := imagegen.NewDownloader(cfg)
//	data, contentType, err := downloader.DownloadBytes(ctx, image.URL)
func NewDownloader(cfg DownloaderConfig) (*Downloader, error) {
	defaults := DefaultDownloaderConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Downloader{
		client:   httpClient,
		maxBytes: cfg.MaxBytes,
	}, nil
}

// DownloadBytes returns the image at url and its Content-Type.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", fmt.Errorf("imagegen: image exceeds %d bytes", d.maxBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
