package elevenlabs

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

	"github.com/lalocmtz/adbroll-backend/internal/pkg/httpx"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

// VoiceSettings tune the synthesis. All three are 0..1; zero values are sent
// as-is, the API treats them as valid extremes.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// Client is the ElevenLabs text-to-speech client. Synthesize returns raw audio
// bytes (mp3) for the given script text.
type Client interface {
	Synthesize(ctx context.Context, voiceID string, text string, settings VoiceSettings) ([]byte, error)
	ListVoices(ctx context.Context) ([]Voice, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	modelID    string
	httpClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing ELEVENLABS_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	modelID := strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL_ID"))
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	timeoutSec := 120
	if v := os.Getenv("ELEVENLABS_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("ELEVENLABS_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "ElevenLabsClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type elevenHTTPError struct {
	StatusCode int
	Body       string
}

func (e *elevenHTTPError) Error() string {
	return fmt.Sprintf("elevenlabs http %d: %s", e.StatusCode, e.Body)
}

func (e *elevenHTTPError) HTTPStatusCode() int {
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
	req.Header.Set("xi-api-key", c.apiKey)
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
		return resp, raw, &elevenHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}

		if !httpx.IsRetryableError(err) {
			return nil, err
		}
		if attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("ElevenLabs request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (c *client) Synthesize(ctx context.Context, voiceID string, text string, settings VoiceSettings) ([]byte, error) {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return nil, fmt.Errorf("voiceID required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text required")
	}

	req := synthesizeRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: settings,
	}

	raw, err := c.do(ctx, "POST", "/v1/text-to-speech/"+voiceID, req)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty audio response for voice %s", voiceID)
	}
	return raw, nil
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

func (c *client) ListVoices(ctx context.Context) ([]Voice, error) {
	raw, err := c.do(ctx, "GET", "/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	var resp voicesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("elevenlabs decode error: %w; raw=%s", err, string(raw))
	}
	return resp.Voices, nil
}
