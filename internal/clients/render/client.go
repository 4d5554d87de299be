package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/httpx"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

// Clip is one timeline entry of a render job: a section's script line paired
// with the b-roll asset that plays under it.
type Clip struct {
	SectionID   uuid.UUID `json:"section_id"`
	AssetKey    string    `json:"asset_key"`
	Text        string    `json:"text"`
	OrderIndex  int       `json:"order_index"`
	MaxDuration float64   `json:"max_duration_seconds,omitempty"`
}

// JobRequest describes one variant render. Seed differentiates variants of the
// same project so the render service shuffles pacing and transitions per
// variant.
type JobRequest struct {
	VariantID    uuid.UUID `json:"variant_id"`
	ProjectID    uuid.UUID `json:"project_id"`
	VoiceoverKey string    `json:"voiceover_key"`
	Clips        []Clip    `json:"clips"`
	Seed         int       `json:"seed"`
	CallbackURL  string    `json:"callback_url"`
}

type JobRef struct {
	JobID string `json:"job_id"`
}

// Client submits render jobs to the external render farm. The farm reports
// progress back through the callback URL; this client never polls.
type Client interface {
	Submit(ctx context.Context, req JobRequest) (JobRef, error)
	Cancel(ctx context.Context, jobID string) error
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("RENDER_SERVICE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing RENDER_SERVICE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	apiKey := strings.TrimSpace(os.Getenv("RENDER_SERVICE_API_KEY"))

	timeoutSec := 30
	if v := os.Getenv("RENDER_SERVICE_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("RENDER_SERVICE_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "RenderClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type renderHTTPError struct {
	StatusCode int
	Body       string
}

func (e *renderHTTPError) Error() string {
	return fmt.Sprintf("render service http %d: %s", e.StatusCode, e.Body)
}

func (e *renderHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &renderHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("render service decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Render request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) Submit(ctx context.Context, req JobRequest) (JobRef, error) {
	var ref JobRef
	if req.VariantID == uuid.Nil {
		return ref, fmt.Errorf("variant id required")
	}
	if len(req.Clips) == 0 {
		return ref, fmt.Errorf("at least one clip required")
	}
	if req.VoiceoverKey == "" {
		return ref, fmt.Errorf("voiceover key required")
	}

	if err := c.do(ctx, "POST", "/v1/jobs", req, &ref); err != nil {
		return JobRef{}, err
	}
	if ref.JobID == "" {
		return JobRef{}, fmt.Errorf("render service returned no job id")
	}
	return ref, nil
}

func (c *client) Cancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id required")
	}
	return c.do(ctx, "DELETE", "/v1/jobs/"+jobID, nil, nil)
}
