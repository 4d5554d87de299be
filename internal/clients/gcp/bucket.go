package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

type BucketCategory string

const (
	// BucketCategorySource holds uploaded reference videos awaiting analysis.
	BucketCategorySource BucketCategory = "source"
	// BucketCategoryAsset holds the brand's b-roll clip library.
	BucketCategoryAsset BucketCategory = "asset"
	// BucketCategoryRender holds voiceovers and rendered variant outputs.
	BucketCategoryRender BucketCategory = "render"
)

type bucketConfig struct {
	name      string
	cdnDomain string
}

type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error
	DeleteFile(ctx context.Context, category BucketCategory, key string) error
	DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error)
	ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error
	GetPublicURL(category BucketCategory, key string) string
	GSURI(category BucketCategory, key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	sourceBucket  bucketConfig
	assetBucket   bucketConfig
	renderBucket  bucketConfig
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	sourceBucketName := os.Getenv("SOURCE_GCS_BUCKET_NAME")
	assetBucketName := os.Getenv("ASSET_GCS_BUCKET_NAME")
	renderBucketName := os.Getenv("RENDER_GCS_BUCKET_NAME")
	if sourceBucketName == "" {
		return nil, fmt.Errorf("missing env var SOURCE_GCS_BUCKET_NAME")
	}
	if assetBucketName == "" {
		return nil, fmt.Errorf("missing env var ASSET_GCS_BUCKET_NAME")
	}
	if renderBucketName == "" {
		return nil, fmt.Errorf("missing env var RENDER_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		sourceBucket: bucketConfig{
			name:      sourceBucketName,
			cdnDomain: os.Getenv("SOURCE_CDN_DOMAIN"),
		},
		assetBucket: bucketConfig{
			name:      assetBucketName,
			cdnDomain: os.Getenv("ASSET_CDN_DOMAIN"),
		},
		renderBucket: bucketConfig{
			name:      renderBucketName,
			cdnDomain: os.Getenv("RENDER_CDN_DOMAIN"),
		},
	}, nil
}

func (bs *bucketService) getBucketConfig(category BucketCategory) (bucketConfig, error) {
	switch category {
	case BucketCategorySource:
		return bs.sourceBucket, nil
	case BucketCategoryAsset:
		return bs.assetBucket, nil
	case BucketCategoryRender:
		return bs.renderBucket, nil
	default:
		return bucketConfig{}, fmt.Errorf("unknown bucket category: %s", category)
	}
}

func (bs *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(cfg.name).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".srt"):
		return "application/x-subrip"
	case strings.HasSuffix(s, ".vtt"):
		return "text/vtt"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}

func (bs *bucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	o := bs.storageClient.Bucket(cfg.name).Object(key)
	if err := o.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, cfg.name, err)
	}
	return nil
}

func (bs *bucketService) ListKeys(ctx context.Context, category BucketCategory, prefix string) ([]string, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := bs.storageClient.Bucket(cfg.name).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (bs *bucketService) DeletePrefix(ctx context.Context, category BucketCategory, prefix string) error {
	keys, err := bs.ListKeys(ctx, category, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = bs.DeleteFile(ctx, category, k)
	}
	return nil
}

func (bs *bucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return key
	}
	if cfg.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", cfg.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.name, key)
}

// GSURI returns the gs:// form of a key, the shape the speech API wants.
func (bs *bucketService) GSURI(category BucketCategory, key string) string {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return key
	}
	return fmt.Sprintf("gs://%s/%s", cfg.name, key)
}

// Do NOT `defer cancel()` before returning the reader. If we did, the context
// would be canceled immediately and callers would read 0 bytes. The cancel is
// attached to the reader's Close() instead.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, category BucketCategory, key string) (io.ReadCloser, error) {
	cfg, err := bs.getBucketConfig(category)
	if err != nil {
		return nil, err
	}
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)

	r, err := bs.storageClient.Bucket(cfg.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}

	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}
