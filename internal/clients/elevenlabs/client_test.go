package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, srvURL string) Client {
	t.Helper()
	t.Setenv("ELEVENLABS_API_KEY", "test-key")
	t.Setenv("ELEVENLABS_BASE_URL", srvURL)
	t.Setenv("ELEVENLABS_MAX_RETRIES", "2")

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSynthesizeSendsVoiceSettings(t *testing.T) {
	var gotPath string
	var gotBody synthesizeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key header: want=test-key got=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	audio, err := c.Synthesize(context.Background(), "voice-1", "hello world", VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.8,
		Style:           0.1,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio: got %q", audio)
	}
	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Fatalf("path: got %q", gotPath)
	}
	if gotBody.VoiceSettings.SimilarityBoost != 0.8 {
		t.Fatalf("similarity_boost: want=0.8 got=%v", gotBody.VoiceSettings.SimilarityBoost)
	}
	if gotBody.Text != "hello world" {
		t.Fatalf("text: got %q", gotBody.Text)
	}
}

func TestSynthesizeRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	audio, err := c.Synthesize(context.Background(), "voice-1", "retry me", VoiceSettings{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "ok" {
		t.Fatalf("audio after retry: got %q", audio)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls: want=2 got=%d", got)
	}
}

func TestSynthesizeDoesNotRetryOn401(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Synthesize(context.Background(), "voice-1", "nope", VoiceSettings{})
	if err == nil {
		t.Fatalf("want error on 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("error should carry status: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls: want=1 got=%d", got)
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(voicesResponse{Voices: []Voice{
			{VoiceID: "v1", Name: "Ana"},
			{VoiceID: "v2", Name: "Ben"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].VoiceID != "v1" {
		t.Fatalf("voices: got %+v", voices)
	}
}
