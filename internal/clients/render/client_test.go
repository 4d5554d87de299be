package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, srvURL string) Client {
	t.Helper()
	t.Setenv("RENDER_SERVICE_URL", srvURL)
	t.Setenv("RENDER_SERVICE_API_KEY", "rk")
	t.Setenv("RENDER_SERVICE_MAX_RETRIES", "2")

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

func validRequest() JobRequest {
	return JobRequest{
		VariantID:    uuid.New(),
		ProjectID:    uuid.New(),
		VoiceoverKey: "voiceovers/p1.mp3",
		Clips: []Clip{
			{SectionID: uuid.New(), AssetKey: "assets/a.mp4", Text: "hook", OrderIndex: 0},
		},
		Seed:        1,
		CallbackURL: "https://api.example.com/api/render/callback",
	}
}

func TestSubmitReturnsJobRef(t *testing.T) {
	var gotReq JobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer rk" {
			t.Errorf("auth header: got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(JobRef{JobID: "job-42"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	req := validRequest()
	ref, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ref.JobID != "job-42" {
		t.Fatalf("job id: want=job-42 got=%q", ref.JobID)
	}
	if gotReq.VariantID != req.VariantID {
		t.Fatalf("variant id not forwarded")
	}
	if len(gotReq.Clips) != 1 || gotReq.Clips[0].AssetKey != "assets/a.mp4" {
		t.Fatalf("clips not forwarded: %+v", gotReq.Clips)
	}
}

func TestSubmitRejectsEmptyClips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	req := validRequest()
	req.Clips = nil
	if _, err := c.Submit(context.Background(), req); err == nil {
		t.Fatalf("want error for empty clips")
	}
}

func TestSubmitRetriesOn503(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(JobRef{JobID: "job-7"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ref, err := c.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ref.JobID != "job-7" {
		t.Fatalf("job id after retry: got %q", ref.JobID)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls: want=2 got=%d", got)
	}
}

func TestSubmitRejectsMissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(JobRef{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Submit(context.Background(), validRequest()); err == nil {
		t.Fatalf("want error when job id missing")
	}
}

func TestCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/jobs/job-9" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Cancel(context.Background(), "job-9"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}
