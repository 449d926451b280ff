package app

import (
	"context"
	"io"
	"strings"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal"
	"qcgallery/internal/errors"
	"qcgallery/internal/metrics"
	"qcgallery/ports"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ImageFetcherConfig configures path validation and caching
type ImageFetcherConfig struct {
	AllowedPrefix string
	CacheTTL      time.Duration
	MaxConcurrent int64
	// DownloadTimeout bounds one shared download, which outlives any single
	// caller's context.
	DownloadTimeout time.Duration
}

// ImageFetcher returns image bytes by logical path through a TTL cache
type ImageFetcher struct {
	store   ports.ObjectStore
	cache   ports.ImageCache
	config  ImageFetcherConfig
	sem     *semaphore.Weighted
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *internal.Logger
}

// NewImageFetcher creates an image fetcher. metrics may be nil.
func NewImageFetcher(store ports.ObjectStore, cache ports.ImageCache, config ImageFetcherConfig, m *metrics.Metrics, logger *internal.Logger) *ImageFetcher {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 16
	}
	if config.DownloadTimeout <= 0 {
		config.DownloadTimeout = time.Minute
	}
	return &ImageFetcher{
		store:   store,
		cache:   cache,
		config:  config,
		sem:     semaphore.NewWeighted(config.MaxConcurrent),
		metrics: m,
		logger:  logger.With("images"),
	}
}

// ValidatePath rejects paths that cannot name an object under the allowed
// prefix. No store call is made for a rejected path.
func (f *ImageFetcher) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.MalformedPath(path, "empty path")
	}
	if !strings.HasPrefix(path, f.config.AllowedPrefix) {
		return errors.MalformedPath(path, "outside "+f.config.AllowedPrefix)
	}
	rest := strings.TrimPrefix(path, f.config.AllowedPrefix)
	if rest == "" {
		return errors.MalformedPath(path, "no object name")
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return errors.MalformedPath(path, "invalid path segment")
		}
	}
	return nil
}

// Fetch returns the object at path. A hit within the TTL makes no store call.
// Concurrent misses on one path share a single download. The download is not
// tied to any caller: a caller that gives up gets its context error while the
// others still receive the bytes.
func (f *ImageFetcher) Fetch(ctx context.Context, path string) (*inspection.Image, error) {
	if err := f.ValidatePath(path); err != nil {
		f.metrics.ImageFetchFailed(errors.CodeMalformedPath)
		return nil, err
	}

	if data, ok := f.cache.Get(ctx, path); ok {
		f.metrics.ImageCacheHit()
		return newImage(path, data), nil
	}
	f.metrics.ImageCacheMiss()

	ch := f.group.DoChan(path, func() (interface{}, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.DownloadTimeout)
		defer cancel()
		data, err := f.download(dctx, path)
		if err != nil {
			return nil, err
		}
		f.cache.Set(dctx, path, data, f.config.CacheTTL)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			f.report(path, res.Err)
			return nil, res.Err
		}
		return newImage(path, res.Val.([]byte)), nil
	}
}

// download reads the whole object or nothing. The reader is closed on every
// path out, including a failed read.
func (f *ImageFetcher) download(ctx context.Context, path string) ([]byte, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Unavailable("image download slot", err)
	}
	defer f.sem.Release(1)

	body, err := f.store.Open(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) || errors.IsUnavailable(err) || errors.IsConnectionError(err) {
			return nil, err
		}
		return nil, errors.Unavailable("open "+path, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Unavailable("read "+path, err)
	}
	return data, nil
}

func (f *ImageFetcher) report(path string, err error) {
	code := errors.GetCode(err)
	f.metrics.ImageFetchFailed(code)
	if errors.IsNotFound(err) {
		f.logger.Info("image not found: %s", path)
		return
	}
	f.logger.Error("image unavailable: %s: %v", path, err)
}

func newImage(path string, data []byte) *inspection.Image {
	return &inspection.Image{
		Path:        path,
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}
}
