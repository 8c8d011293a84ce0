// Package upload sends lesson images and videos to a Cloudinary-style media
// service and returns the hosted URL that the editor stores in image
// nodes.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("file too large")
	ErrNotConfigured   = errors.New("upload service not configured")
)

// DefaultBaseURL is the Cloudinary upload API root.
const DefaultBaseURL = "https://api.cloudinary.com/v1_1"

// Kind is the resource type of an upload.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var allowedTypes = map[Kind][]string{
	KindImage: {"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"},
	KindVideo: {"video/mp4", "video/webm", "video/ogg", "video/quicktime"},
}

var maxSize = map[Kind]int64{
	KindImage: 10 << 20,
	KindVideo: 100 << 20,
}

// Config holds the service coordinates.
type Config struct {
	BaseURL   string
	CloudName string
	Preset    string
	// Folder is the prefix for uploads; images go to Folder/thumbnails and
	// videos to Folder/videos. Empty means "lessons".
	Folder string
	// MaxBytes caps every upload below the per-kind limit when positive.
	MaxBytes int64
}

// Result is a successful upload.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
	Bytes    int64  `json:"bytes"`
	Kind     Kind   `json:"kind"`
}

// Client uploads media files.
type Client struct {
	cfg        Config
	httpClient *http.Client
	stats      *LatencyStats
	log        *slog.Logger
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Folder == "" {
		cfg.Folder = "lessons"
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		stats:   NewLatencyStats(time.Hour),
		log:     log,
		backoff: Backoff,
	}
}

// Stats returns the rolling upload latency aggregate.
func (c *Client) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Validate checks the media type and size against the limits for kind.
func (c *Client) Validate(kind Kind, contentType string, size int64) error {
	types, ok := allowedTypes[kind]
	if !ok {
		return fmt.Errorf("%w: kind %q", ErrUnsupportedType, kind)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	found := false
	for _, t := range types {
		if t == ct {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s (allowed: %s)", ErrUnsupportedType, contentType, strings.Join(types, ", "))
	}
	limit := maxSize[kind]
	if c.cfg.MaxBytes > 0 && c.cfg.MaxBytes < limit {
		limit = c.cfg.MaxBytes
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes, max %dMB", ErrTooLarge, size, limit>>20)
	}
	return nil
}

// Upload validates and sends data, retrying transient failures.
func (c *Client) Upload(ctx context.Context, kind Kind, filename, contentType string, data []byte) (*Result, error) {
	if c.cfg.CloudName == "" || c.cfg.Preset == "" {
		return nil, ErrNotConfigured
	}
	if err := c.Validate(kind, contentType, int64(len(data))); err != nil {
		return nil, err
	}

	log := c.log.With("kind", kind, "filename", filename, "bytes", len(data))
	var lastErr error
	for attempt := range MaxRetries {
		start := time.Now()
		res, err := c.post(ctx, kind, filename, contentType, data)
		if err == nil {
			c.stats.Record(time.Since(start).Milliseconds())
			log.Info("upload complete", "url", res.URL)
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable upload error", "attempt", attempt, "error", err)
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	log.Error("upload failed", "error", lastErr)
	return nil, lastErr
}

func (c *Client) folder(kind Kind) string {
	if kind == KindImage {
		return c.cfg.Folder + "/thumbnails"
	}
	return c.cfg.Folder + "/videos"
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int64  `json:"bytes"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, kind Kind, filename, contentType string, data []byte) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.WriteField("upload_preset", c.cfg.Preset); err != nil {
		return nil, fmt.Errorf("write preset: %w", err)
	}
	if err := mw.WriteField("folder", c.folder(kind)); err != nil {
		return nil, fmt.Errorf("write folder: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/upload", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName, kind)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var out uploadResponse
	if err := json.Unmarshal(respBody, &out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "upload failed"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("upload status %d: %s", resp.StatusCode, msg)
	}
	if out.SecureURL == "" {
		return nil, errors.New("upload response has no secure_url")
	}
	return &Result{URL: out.SecureURL, PublicID: out.PublicID, Bytes: out.Bytes, Kind: kind}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
