// Package uploader talks to the upload-and-scan service that receives
// summary log files before they reach this system.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rpattn/wastelog/internal/domain"
)

// Config configures the uploader client.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit caps status calls per second across the process.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// FormFile is one file entry from the upload form.
type FormFile struct {
	FileID       string            `json:"fileId"`
	Filename     string            `json:"filename"`
	FileStatus   domain.FileStatus `json:"fileStatus"`
	S3Bucket     string            `json:"s3Bucket"`
	S3Key        string            `json:"s3Key"`
	ErrorMessage string            `json:"errorMessage"`
	HasError     bool              `json:"hasError"`
}

// UploadStatus is the uploader's view of one upload session.
type UploadStatus struct {
	UploadStatus          string                     `json:"uploadStatus"`
	Form                  map[string]json.RawMessage `json:"form"`
	NumberOfRejectedFiles int                        `json:"numberOfRejectedFiles"`
}

// Ready reports whether scanning has finished.
func (s *UploadStatus) Ready() bool {
	return s != nil && s.UploadStatus == "ready"
}

// File returns the first form field that carries a file. Non-file form
// fields are ignored. Field names are visited in sorted order.
func (s *UploadStatus) File() (*FormFile, bool) {
	if s == nil {
		return nil, false
	}
	names := make([]string, 0, len(s.Form))
	for name := range s.Form {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var file FormFile
		if err := json.Unmarshal(s.Form[name], &file); err != nil {
			continue
		}
		if file.FileID != "" {
			return &file, true
		}
	}
	return nil, false
}

// Client calls GET {baseURL}/status/{uploadId}.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(cfg Config, transport http.RoundTripper) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// GetUploadStatus returns nil, nil when the uploader does not know the
// upload id.
func (c *Client) GetUploadStatus(ctx context.Context, uploadID string) (*UploadStatus, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + "/status/" + url.PathEscape(uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build uploader request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploader request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploader response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("uploader returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var status UploadStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode uploader response: %w", err)
	}
	return &status, nil
}
