package app

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qcgallery/adapters/cache"
	"qcgallery/internal/errors"
	"qcgallery/internal/metrics"
	"qcgallery/internal/testkit"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFetcher(store *testkit.MemoryObjectStore, m *metrics.Metrics) *ImageFetcher {
	return NewImageFetcher(store, cache.NewMemory(time.Hour), ImageFetcherConfig{
		AllowedPrefix: testkit.ImagePrefix,
		CacheTTL:      time.Hour,
		MaxConcurrent: 4,
	}, m, nil)
}

func TestFetchMissingPathIsNotFound(t *testing.T) {
	store := testkit.NewMemoryObjectStore(nil)
	f := newFetcher(store, nil)

	img, err := f.Fetch(context.Background(), testkit.ImagePrefix+"missing.jpg")
	assert.Nil(t, img)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsUnavailable(err))
}

func TestSecondFetchIsServedFromCache(t *testing.T) {
	path := testkit.ImagePrefix + "photo1.jpg"
	store := testkit.NewMemoryObjectStore(map[string][]byte{path: jpeg})
	m := metrics.New()
	f := newFetcher(store, m)
	ctx := context.Background()

	first, err := f.Fetch(ctx, path)
	require.NoError(t, err)
	second, err := f.Fetch(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Opens())
	assert.Equal(t, 0, store.Unclosed())
	assert.Equal(t, jpeg, second.Data)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, "image/jpeg", second.ContentType)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP qcgallery_image_cache_total Image cache lookups by result.
# TYPE qcgallery_image_cache_total counter
qcgallery_image_cache_total{result="hit"} 1
qcgallery_image_cache_total{result="miss"} 1
`), "qcgallery_image_cache_total"))
}

func TestMalformedPathsNeverReachTheStore(t *testing.T) {
	store := testkit.NewMemoryObjectStore(nil)
	f := newFetcher(store, nil)

	for _, path := range []string{
		"",
		"/etc/passwd",
		testkit.ImagePrefix,
		testkit.ImagePrefix + "../../secrets.jpg",
		testkit.ImagePrefix + "a//b.jpg",
		"/Volumes/other_catalog/x.jpg",
	} {
		_, err := f.Fetch(context.Background(), path)
		assert.True(t, errors.IsMalformedPath(err), "path %q: %v", path, err)
	}
	assert.Zero(t, store.Opens())
}

func TestUnavailableIsNotCached(t *testing.T) {
	path := testkit.ImagePrefix + "photo2.jpg"
	store := testkit.NewMemoryObjectStore(map[string][]byte{path: jpeg})
	store.FailWith(io.ErrUnexpectedEOF)
	f := newFetcher(store, nil)
	ctx := context.Background()

	_, err := f.Fetch(ctx, path)
	assert.True(t, errors.IsUnavailable(err))
	assert.False(t, errors.IsNotFound(err))

	store.FailWith(nil)
	img, err := f.Fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, 2, store.Opens())
}

func TestAuthFailureSurfacesUnwrapped(t *testing.T) {
	path := testkit.ImagePrefix + "photo5.jpg"
	store := testkit.NewMemoryObjectStore(map[string][]byte{path: jpeg})
	store.FailWith(errors.AuthFailure("volumes", nil))
	f := newFetcher(store, nil)

	_, err := f.Fetch(context.Background(), path)
	assert.Equal(t, errors.CodeAuthFailure, errors.GetCode(err))
	assert.False(t, errors.IsUnavailable(err))
}

// countingCache counts lookups so tests can tell when callers have missed
type countingCache struct {
	*cache.Memory
	gets atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	defer c.gets.Add(1)
	return c.Memory.Get(ctx, key)
}

func newGatedFetcher(store *testkit.MemoryObjectStore) (*ImageFetcher, *countingCache) {
	c := &countingCache{Memory: cache.NewMemory(time.Hour)}
	return NewImageFetcher(store, c, ImageFetcherConfig{
		AllowedPrefix: testkit.ImagePrefix,
		CacheTTL:      time.Hour,
		MaxConcurrent: 4,
	}, nil, nil), c
}

// waitForMisses waits until n callers have missed the cache, then gives them
// a moment to join the shared download.
func waitForMisses(t *testing.T, c *countingCache, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return c.gets.Load() >= n }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
}

func TestConcurrentMissesShareOneDownload(t *testing.T) {
	path := testkit.ImagePrefix + "photo3.jpg"
	store := testkit.NewMemoryObjectStore(map[string][]byte{path: jpeg})
	release := store.Hold()
	f, c := newGatedFetcher(store)

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := f.Fetch(context.Background(), path)
			assert.NoError(t, err)
			if img != nil {
				assert.Equal(t, jpeg, img.Data)
			}
		}()
	}
	waitForMisses(t, c, callers)
	assert.Equal(t, 1, store.Opens())
	release()
	wg.Wait()

	assert.Equal(t, 1, store.Opens())
	assert.Equal(t, 0, store.Unclosed())

	_, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Opens())
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	path := testkit.ImagePrefix + "photo4.jpg"
	store := testkit.NewMemoryObjectStore(map[string][]byte{path: jpeg})
	release := store.Hold()
	defer release()
	f, c := newGatedFetcher(store)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctxA, path)
		errA <- err
	}()

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		img, err := f.Fetch(context.Background(), path)
		if err != nil {
			resB <- result{err: err}
			return
		}
		resB <- result{data: img.Data}
	}()

	waitForMisses(t, c, 2)
	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	release()
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, jpeg, b.data)
	assert.Equal(t, 1, store.Opens())

	// The abandoned caller's download still filled the cache.
	img, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, jpeg, img.Data)
	assert.Equal(t, 1, store.Opens())
}
