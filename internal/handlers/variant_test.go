package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type fakeProgress struct {
	mu      sync.Mutex
	applied []types.ProgressEvent
	fetched [][]uuid.UUID
	summary types.BatchSummary
}

func (f *fakeProgress) ApplyEvent(ctx context.Context, ev types.ProgressEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, ev)
	return true, nil
}

func (f *fakeProgress) Fetch(ctx context.Context, ids []uuid.UUID) (types.BatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ids)
	return f.summary, nil
}

func newVariantRouter(t *testing.T) (*gin.Engine, *fakeProgress) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	progress := &fakeProgress{summary: types.BatchSummary{Variants: map[uuid.UUID]types.VariantProgress{}}}
	h := NewVariantHandler(log, progress)

	router := gin.New()
	router.GET("/api/variants/progress", h.GetProgress)
	router.POST("/api/render/callback", h.RenderCallback)
	return router, progress
}

func TestRenderCallbackAppliesEvent(t *testing.T) {
	router, progress := newVariantRouter(t)

	variantID := uuid.New()
	body := `{"variant_id":"` + variantID.String() + `","status":"rendering","percent":40}`
	req := httptest.NewRequest(http.MethodPost, "/api/render/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(progress.applied) != 1 {
		t.Fatalf("applied events: want=1 got=%d", len(progress.applied))
	}
	got := progress.applied[0]
	if got.VariantID != variantID || got.Status != types.VariantStatusRendering || got.Percent != 40 {
		t.Fatalf("event: %+v", got)
	}
}

func TestRenderCallbackRejectsMissingVariantID(t *testing.T) {
	router, progress := newVariantRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/render/callback", strings.NewReader(`{"percent":10}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
	if len(progress.applied) != 0 {
		t.Fatalf("event applied despite missing variant id")
	}
}

func TestGetProgressParsesIDSet(t *testing.T) {
	router, progress := newVariantRouter(t)

	a, b := uuid.New(), uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/variants/progress?ids="+a.String()+","+b.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(progress.fetched) != 1 {
		t.Fatalf("fetch calls: want=1 got=%d", len(progress.fetched))
	}
	if got := progress.fetched[0]; len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("ids: %v", got)
	}
}

func TestGetProgressRejectsBadID(t *testing.T) {
	router, _ := newVariantRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/variants/progress?ids=nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", rec.Code)
	}
}
